package dashboard

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/resolver"
	"github.com/MeKo-Tech/civicmaps/internal/store"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shared  = orb.Point{-118.40, 34.05}
	pointer = orb.Point{-118.401, 34.051}
)

func testCatalog() *dataset.Catalog {
	housing := []types.HousingSite{
		{Point: shared, Organization: "PATH", ProjectName: "Site A", HUDClass: "ES", PopulationServed: "Veteran", ProjectType: "Bridge Housing", CouncilDistrict: "1", TotalBeds: 40},
		{Point: shared, Organization: "LA Family Housing", ProjectName: "Site B", HUDClass: "TH", PopulationServed: "Family", ProjectType: "Tiny Home Village", CouncilDistrict: "2", TotalBeds: 20},
		{Point: orb.Point{-118.20, 34.10}, Organization: "Hope", ProjectName: "Site C", HUDClass: "SH", PopulationServed: "Youth", ProjectType: "Inside Safe", CouncilDistrict: "3", TotalBeds: 12},
	}
	issued := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	citations := []types.Citation{
		{Point: shared, Location: "100 W 1ST ST", FineAmount: 73, BodyStyle: "PA", IssueDate: issued, Year: 2024},
		{Point: shared, Location: "100 W 1ST ST", FineAmount: 63, IssueDate: issued.AddDate(-1, 0, 0), Year: 2023},
		{Point: orb.Point{-118.41, 34.06}, Location: "600 S SPRING ST", FineAmount: 93, Year: 2024},
	}
	square := orb.MultiPolygon{{{{-118.5, 34}, {-118.3, 34}, {-118.3, 34.2}, {-118.5, 34.2}, {-118.5, 34}}}}
	districts := []types.Boundary{{ID: "cd-boundaries/0", Name: "1", Geometry: square}}
	return dataset.NewCatalog(housing, citations, districts, districts)
}

func testManager(t *testing.T, st store.Store) *Manager {
	t.Helper()
	configs, err := Builtin(testCatalog())
	require.NoError(t, err)
	m, err := NewManager(configs, st, nil)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m
}

func open(t *testing.T, m *Manager, id string) *Session {
	t.Helper()
	s, err := m.Open(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestBuiltinConfigs(t *testing.T) {
	configs, err := Builtin(testCatalog())
	require.NoError(t, err)
	require.Len(t, configs, 2)

	housing := configs[0]
	assert.Equal(t, IDInterimHousing, housing.ID)
	assert.Equal(t, HoverAll, housing.HoverMode)
	require.Len(t, housing.Categories, 4)
	assert.Len(t, housing.Categories[0].Options, 15)
	assert.Len(t, housing.Categories[1].Options, 3)
	assert.Equal(t, "Emergency Shelter", housing.Categories[1].Options[0].Label)
	assert.Len(t, housing.Categories[2].Options, 12)
	assert.Len(t, housing.Categories[3].Options, 7)
	assert.Equal(t, orb.Point{-118.41, 34}, housing.View.Center)
	assert.Equal(t, 10.0, housing.View.Zoom)

	intro, ok := housing.Modal(ModalIntro)
	require.True(t, ok)
	assert.True(t, intro.OpenOnLoad)
	assert.Contains(t, string(intro.Content), "lahsa.org")

	citations := configs[1]
	assert.Equal(t, HoverClosest, citations.HoverMode)
	require.Len(t, citations.Categories, 1)
	assert.Equal(t, filter.KindNumber, citations.Categories[0].Kind)
	assert.Equal(t, []string{"2019", "2020", "2021", "2022", "2023", "2024"}, citations.Categories[0].Values())

	heat, ok := citations.Layer(LayerParkingCitations)
	require.True(t, ok)
	assert.Equal(t, 5.0, heat.MinZoom)

	lines, ok := citations.Layer(LayerCouncilDistricts)
	require.True(t, ok)
	assert.Equal(t, 1.0, lines.Line.Width)
}

func TestConfigJSON(t *testing.T) {
	cfg, err := InterimHousing(testCatalog())
	require.NoError(t, err)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "interim-housing", out["id"])
	assert.Len(t, out["layers"], 2)
	assert.NotContains(t, out, "Sources", "sources are served separately")
}

func TestTooltipRender(t *testing.T) {
	cfg, err := InterimHousing(testCatalog())
	require.NoError(t, err)

	f := types.NewFeature("x", shared, map[string]any{
		types.PropOrganization: "A & B <Shelter>",
		types.PropProjectName:  "Site A",
		types.PropTotalBeds:    40,
	})
	html, err := cfg.Tooltip.Render([]types.Feature{f, f})
	require.NoError(t, err)

	assert.Contains(t, html, "<strong>Organization:</strong> A &amp; B &lt;Shelter&gt;")
	assert.Contains(t, html, "<strong>Total Beds:</strong> 40")
	assert.Contains(t, html, "<strong>HUD Classification:</strong> </p>", "missing values render empty")
	assert.Equal(t, 2, strings.Count(html, `class="tooltip-row"`))
}

func TestCitationTooltip(t *testing.T) {
	cfg, err := ParkingCitations(testCatalog())
	require.NoError(t, err)

	html, err := cfg.Tooltip.Render(testCatalog().CitationFeatures[:1])
	require.NoError(t, err)
	assert.Contains(t, html, "<p>Address: 100 W 1ST ST</p>")
	assert.Contains(t, html, "<p>Fine Amount: 73</p>")
	assert.Contains(t, html, "<p>Issue Date: 2024-03-04</p>")
	assert.Contains(t, html, "<p>Body Style Description: PA</p>")

	html, err = cfg.Tooltip.Render(testCatalog().CitationFeatures[2:])
	require.NoError(t, err)
	assert.Contains(t, html, "<p>Issue Date: </p>")
	assert.Contains(t, html, "<p>Body Style Description: </p>")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-04", formatDate("2024-03-04T23:10:00Z"))
	assert.Equal(t, "2024-03-04", formatDate("2024-03-04T00:00:00.000"))
	assert.Equal(t, "", formatDate(""))
	assert.Equal(t, "", formatDate(nil))
	assert.Equal(t, "", formatDate("soon"))
}

func TestSessionMountState(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	v, err := s.View()
	require.NoError(t, err)
	assert.Equal(t, IDInterimHousing, v.Dashboard)
	assert.Len(t, v.Selections["cd"], 15, "every option starts selected")
	assert.Nil(t, v.Filter, "no filter before the first action")
	assert.Equal(t, "all", v.Variant)
	assert.Equal(t, "cd", v.Panel.Tab)
	assert.True(t, v.Panel.Open)
	assert.True(t, v.Panel.Modals[ModalIntro])
	assert.False(t, v.Panel.Modals[ModalShelterTypes])
	assert.Nil(t, v.Popup)
}

func TestSessionApply(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	v, err := s.Apply(filter.Set("cd", "2", "99"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, v.Selections["cd"], "unknown values are dropped")
	assert.NotEqual(t, "all", v.Variant)

	data, err := json.Marshal(v.Filter)
	require.NoError(t, err)
	assert.Contains(t, string(data), `["in",["get","CD"],["literal",["2"]]]`)

	v, err = s.Apply(filter.UnselectAll("projType"))
	require.NoError(t, err)
	assert.Equal(t, filter.Const(false), v.Filter)

	_, err = s.Apply(filter.SelectAll("nope"))
	require.ErrorIs(t, err, filter.ErrUnknownCategory)

	v, err = s.View()
	require.NoError(t, err)
	assert.Equal(t, filter.Const(false), v.Filter, "a failed action leaves the state alone")
}

func TestHoverAllListsEveryCandidate(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	res, err := s.Hover(shared, 10)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"interimhousing/0", "interimhousing/1"}, res.Features)
	assert.Equal(t, shared, res.Anchor)
	assert.Contains(t, res.HTML, "Site A")
	assert.Contains(t, res.HTML, "Site B")

	v, err := s.View()
	require.NoError(t, err)
	require.NotNil(t, v.Popup)
	assert.Equal(t, res.HTML, v.Popup.HTML)

	// Filtering narrows the candidates the engine returns.
	_, err = s.Apply(filter.Set("cd", "2"))
	require.NoError(t, err)
	res, err = s.Hover(shared, 10)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"interimhousing/1"}, res.Features)

	// Unselect all matches nothing: no tooltip, popup removed.
	_, err = s.Apply(filter.UnselectAll("cd"))
	require.NoError(t, err)
	res, err = s.Hover(shared, 10)
	require.NoError(t, err)
	assert.Nil(t, res)
	v, err = s.View()
	require.NoError(t, err)
	assert.Nil(t, v.Popup)
}

func TestHoverClosestAggregatesCoincident(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDParkingCitations)
	cat := testCatalog()

	res, err := s.HoverCandidates(resolver.Event{Pointer: pointer, Candidates: cat.CitationFeatures})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, shared, res.Point)
	assert.Equal(t, []string{"parkingcitation2024/0", "parkingcitation2024/1"}, res.Features)
	assert.Equal(t, 2, strings.Count(res.HTML, "Address: 100 W 1ST ST"))

	// The engine hit-test at z14 finds the same pair.
	res, err = s.Hover(pointer, 14)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"parkingcitation2024/0", "parkingcitation2024/1"}, res.Features)

	// Years compare numerically.
	_, err = s.Apply(filter.Set("year", "2023"))
	require.NoError(t, err)
	res, err = s.Hover(pointer, 14)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"parkingcitation2024/1"}, res.Features)

	res, err = s.HoverCandidates(resolver.Event{Pointer: pointer})
	require.NoError(t, err)
	assert.Nil(t, res, "no candidates, no tooltip")
}

func TestHoverAnchorAcrossAntimeridian(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDParkingCitations)

	f := types.NewFeature("far", orb.Point{-179.9, 0}, nil)
	res, err := s.HoverCandidates(resolver.Event{Pointer: orb.Point{179.9, 0}, Candidates: []types.Feature{f}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 180.1, res.Anchor.Lon(), 1e-9)
	assert.Equal(t, orb.Point{-179.9, 0}, res.Point)
}

func TestLeaveHidesPopup(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	_, err := s.Hover(shared, 10)
	require.NoError(t, err)
	require.NoError(t, s.Leave())

	v, err := s.View()
	require.NoError(t, err)
	assert.Nil(t, v.Popup)
}

func TestPanel(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	require.NoError(t, s.SelectTab("population_served"))
	require.ErrorIs(t, s.SelectTab("year"), ErrUnknownTab)

	require.NoError(t, s.TogglePanel())
	require.NoError(t, s.CloseModal(ModalIntro))
	require.NoError(t, s.OpenModal(ModalShelterTypes))
	require.ErrorIs(t, s.OpenModal("nope"), ErrUnknownModal)

	// An invalid batch changes nothing.
	tab := "cd"
	require.ErrorIs(t, s.UpdatePanel(PanelChange{Tab: &tab, ToggleModal: "nope"}), ErrUnknownModal)

	v, err := s.View()
	require.NoError(t, err)
	assert.Equal(t, "population_served", v.Panel.Tab)
	assert.False(t, v.Panel.Open)
	assert.False(t, v.Panel.Modals[ModalIntro])
	assert.True(t, v.Panel.Modals[ModalShelterTypes])

	require.NoError(t, s.UpdatePanel(PanelChange{ToggleModal: ModalShelterTypes}))
	v, err = s.View()
	require.NoError(t, err)
	assert.False(t, v.Panel.Modals[ModalShelterTypes])
}

func TestSessionClose(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)
	ctx := context.Background()

	require.NoError(t, m.Close(ctx, s.ID()))
	assert.Equal(t, 0, m.Len())
	require.NoError(t, s.Close(), "closing twice is fine")

	_, err := s.Apply(filter.SelectAll("cd"))
	assert.ErrorIs(t, err, engine.ErrClosed)
	_, err = s.Hover(shared, 10)
	assert.ErrorIs(t, err, engine.ErrClosed)
	_, err = s.View()
	assert.ErrorIs(t, err, engine.ErrClosed)

	_, err = m.Get(ctx, s.ID())
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, m.Close(ctx, s.ID()), ErrUnknownSession)
}

func TestManagerUnknownDashboard(t *testing.T) {
	m := testManager(t, nil)
	_, err := m.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownDashboard)
}

func TestManagerFeatures(t *testing.T) {
	m := testManager(t, nil)

	fs, err := m.Features(IDParkingCitations, []string{"parkingcitation2024/2", "missing", "parkingcitation2024/0"})
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "parkingcitation2024/2", fs[0].ID)
	assert.Equal(t, "parkingcitation2024/0", fs[1].ID)

	_, err = m.Features("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownDashboard)
}

func TestManagerRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(0)

	first := testManager(t, st)
	s := open(t, first, IDInterimHousing)
	_, err := s.Apply(filter.Set("cd", "1", "3"))
	require.NoError(t, err)
	require.NoError(t, s.SelectTab("projType"))
	first.Shutdown()

	second := testManager(t, st)
	restored, err := second.Get(ctx, s.ID())
	require.NoError(t, err)

	v, err := restored.View()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, v.Selections["cd"])
	assert.Equal(t, "projType", v.Panel.Tab)
	assert.NotNil(t, v.Filter)

	res, err := restored.Hover(shared, 10)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"interimhousing/0"}, res.Features, "restored filter is installed on the engine")

	require.NoError(t, second.Close(ctx, s.ID()))
	_, err = st.Load(ctx, s.ID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManagerExpire(t *testing.T) {
	m := testManager(t, nil)
	s := open(t, m, IDInterimHousing)

	assert.Equal(t, 0, m.Expire(time.Hour))
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 1, m.Expire(-time.Second))
	assert.Equal(t, 0, m.Len())
	_, err := s.View()
	assert.ErrorIs(t, err, engine.ErrClosed)
}
