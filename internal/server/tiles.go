package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/civicmaps/internal/pipeline"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
)

// serveTile renders or loads an overlay tile. With ?session= the
// dashboard's filtered layer is drawn with that session's selection.
func (s *Server) serveTile(w http.ResponseWriter, r *http.Request) {
	if s.tiles == nil {
		http.NotFound(w, r)
		return
	}

	coords, scale, err := parseTileParams(r.PathValue("z"), r.PathValue("x"), r.PathValue("file"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cfg, err := s.manager.Dashboard(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := pipeline.Request{
		Dashboard: cfg.ID,
		Layer:     r.PathValue("layer"),
		Coords:    coords,
		Scale:     scale,
	}
	if sid := r.URL.Query().Get("session"); sid != "" && req.Layer == cfg.FilterLayer {
		if req.Filter, req.Variant, err = s.sessionFilter(r.Context(), cfg.ID, sid); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()

	res, err := s.tiles.Generate(ctx, req, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if req.Filter == nil {
		w.Header().Set("Cache-Control", s.cfg.CacheControl)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	if res.Cached {
		w.Header().Set("X-Tile-Cache", "hit")
	} else {
		w.Header().Set("X-Tile-Cache", "miss")
	}
	if _, err := w.Write(res.Data); err != nil {
		s.log().Error("failed to write tile", "coords", coords.String(), "error", err)
	}
}

// parseTileParams parses z, x and a "{y}.png" or "{y}@2x.png" file name.
func parseTileParams(zs, xs, file string) (tile.Coords, int, error) {
	name, ok := strings.CutSuffix(file, ".png")
	if !ok {
		return tile.Coords{}, 0, fmt.Errorf("%w: tile must be a .png", errBadRequest)
	}
	scale := 1
	if base, hidpi := strings.CutSuffix(name, "@2x"); hidpi {
		name, scale = base, 2
	}

	var vals [3]uint32
	for i, s := range []string{zs, xs, name} {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return tile.Coords{}, 0, fmt.Errorf("%w: invalid tile coordinate %q", errBadRequest, s)
		}
		vals[i] = uint32(v)
	}

	c := tile.NewCoords(vals[0], vals[1], vals[2])
	if !c.Valid() {
		return tile.Coords{}, 0, fmt.Errorf("%w: %d/%d/%d", pipeline.ErrInvalidTile, c.Z, c.X, c.Y)
	}
	return c, scale, nil
}
