package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/geojson"
	"github.com/MeKo-Tech/civicmaps/internal/resolver"
	"github.com/paulmach/orb"
)

type dashboardSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (s *Server) listDashboards(w http.ResponseWriter, r *http.Request) {
	configs := s.manager.Dashboards()
	out := make([]dashboardSummary, len(configs))
	for i, cfg := range configs {
		out[i] = dashboardSummary{ID: cfg.ID, Title: cfg.Title}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Dashboard(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// getSource serves a source as GeoJSON. With ?session= the filtered
// layer's source is restricted to the session's current selection.
func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Dashboard(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	src, ok := cfg.Source(r.PathValue("source"))
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", engine.ErrUnknownSource, r.PathValue("source")))
		return
	}

	var pred filter.Expr
	if sid := r.URL.Query().Get("session"); sid != "" {
		if layer, ok := cfg.Layer(cfg.FilterLayer); ok && layer.Source == src.ID {
			if pred, _, err = s.sessionFilter(r.Context(), cfg.ID, sid); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
	}

	fc := geojson.ToGeoJSON(src.Points, pred)
	if len(src.Boundaries) > 0 {
		fc = geojson.BoundariesToGeoJSON(src.Boundaries)
	}
	data, err := geojson.Marshal(fc, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if pred == nil {
		w.Header().Set("Cache-Control", s.cfg.CacheControl)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	_, _ = w.Write(data)
}

// sessionFilter returns the filter of a session, which must belong to the
// given dashboard.
func (s *Server) sessionFilter(ctx context.Context, dashboardID, sid string) (filter.Expr, string, error) {
	sess, err := s.manager.Get(ctx, sid)
	if err != nil {
		return nil, "", err
	}
	if sess.Config().ID != dashboardID {
		return nil, "", fmt.Errorf("%w: session %s belongs to %s", errBadRequest, sid, sess.Config().ID)
	}
	return sess.Filter()
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := sess.View()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	sess, err := s.manager.Get(r.Context(), r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.View()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.Context(), r.PathValue("sid")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyFilter(w http.ResponseWriter, r *http.Request) {
	var action filter.Action
	if err := s.decodeBody(w, r, &action); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Apply(action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updatePanel(w http.ResponseWriter, r *http.Request) {
	var change dashboard.PanelChange
	if err := s.decodeBody(w, r, &change); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.UpdatePanel(change); err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := sess.View()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// hoverRequest is a pointer move. Without Candidates the server hit-tests
// the hover layer at Zoom; with them the client's own hit-test is trusted
// and the ids are resolved in the given order.
type hoverRequest struct {
	Pointer    *orb.Point `json:"pointer"`
	Zoom       float64    `json:"zoom"`
	Candidates []string   `json:"candidates"`
}

type hoverResponse struct {
	Hit bool `json:"hit"`
	*dashboard.HoverResult
}

func (s *Server) hover(w http.ResponseWriter, r *http.Request) {
	var req hoverRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Pointer == nil {
		s.writeError(w, r, fmt.Errorf("%w: pointer is required", errBadRequest))
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var (
		res *dashboard.HoverResult
		err error
	)
	if req.Candidates != nil {
		ev := resolver.Event{Pointer: *req.Pointer}
		ev.Candidates, err = s.manager.Features(sess.Config().ID, req.Candidates)
		if err == nil {
			res, err = sess.HoverCandidates(ev)
		}
	} else {
		res, err = sess.Hover(*req.Pointer, req.Zoom)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoverResponse{Hit: res != nil, HoverResult: res})
}

func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Leave(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
