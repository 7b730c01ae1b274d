package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestApplyActions(t *testing.T) {
	state := filter.NewState([]filter.Category{dashboard.CategoryCouncilDistrict, dashboard.CategoryYear})

	got, err := applyActions(state, []string{"unselect_all:cd", "set:cd=4,1"})
	require.NoError(t, err)
	sel, ok := got.Selection("cd")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"1", "4"}, sel.Values())

	_, err = applyActions(state, []string{"select_all:nope"})
	assert.ErrorIs(t, err, filter.ErrUnknownCategory)

	_, err = applyActions(state, []string{"bogus"})
	assert.Error(t, err)
}

func TestPrintReports(t *testing.T) {
	var buf bytes.Buffer
	err := printReports(&buf, []dataset.LoadReport{
		{Dataset: "interim-housing", Source: "embedded", Total: 3, Loaded: 2, Skipped: 1, Reasons: []string{"feature 2: missing geometry"}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DATASET")
	assert.Regexp(t, `interim-housing\s+3\s+2\s+1\s+embedded`, out)
	assert.Contains(t, out, "interim-housing: feature 2: missing geometry")
}

func TestFilterCommand(t *testing.T) {
	out := execute(t, "filter", "--dashboard", dashboard.IDParkingCitations, "set:year=2023")

	assert.Contains(t, out, `filter:  ["in",["get","year"],["literal",[2023]]]`)
	assert.Regexp(t, `variant: sel-[0-9a-f]{16}`, out)
}

func TestHoverCommand_NoFeature(t *testing.T) {
	out := execute(t, "hover", "--dashboard", dashboard.IDInterimHousing, "--lon", "10", "--lat", "50")
	assert.Contains(t, out, "no feature under pointer")
}
