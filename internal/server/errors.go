package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
)

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownDashboard),
		errors.Is(err, dashboard.ErrUnknownSession),
		errors.Is(err, engine.ErrUnknownLayer),
		errors.Is(err, engine.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, filter.ErrUnknownCategory),
		errors.Is(err, filter.ErrUnknownAction),
		errors.Is(err, dashboard.ErrUnknownModal),
		errors.Is(err, dashboard.ErrUnknownTab),
		errors.Is(err, pipeline.ErrUnsupportedLayer),
		errors.Is(err, pipeline.ErrInvalidTile):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrClosed):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
