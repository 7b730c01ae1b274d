//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/resolver"
	"github.com/MeKo-Tech/civicmaps/internal/types"
)

// Candidate is a hit-tested feature as reported by the map in the browser.
type Candidate struct {
	ID          string         `json:"id"`
	Coordinates [2]float64     `json:"coordinates"`
	Properties  map[string]any `json:"properties"`
}

// ResolveRequest is a pointer move with the features under the cursor.
type ResolveRequest struct {
	Pointer    [2]float64  `json:"pointer"`
	Candidates []Candidate `json:"candidates"`
}

type ResolveResponse struct {
	Hit      bool        `json:"hit"`
	Point    *[2]float64 `json:"point,omitempty"`
	Anchor   *[2]float64 `json:"anchor,omitempty"`
	Features []string    `json:"features,omitempty"`
}

// FilterRequest replays reducer actions over a dashboard's categories, as
// returned by GET /api/dashboards/{id}.
type FilterRequest struct {
	Categories []filter.Category `json:"categories"`
	Actions    []filter.Action   `json:"actions"`
}

type FilterResponse struct {
	Filter     filter.Expr         `json:"filter"`
	Variant    string              `json:"variant"`
	Selections map[string][]string `json:"selections"`
}

func errorResult(err error) any {
	return map[string]any{"error": err.Error()}
}

func encode(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return string(data)
}

// resolve picks the feature group a tooltip should show for a pointer event.
func resolve(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("missing arguments"))
	}

	var req ResolveRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult(fmt.Errorf("failed to parse request: %w", err))
	}

	ev := resolver.Event{Pointer: orb.Point(req.Pointer)}
	for _, c := range req.Candidates {
		ev.Candidates = append(ev.Candidates, types.NewFeature(c.ID, orb.Point(c.Coordinates), c.Properties))
	}

	hit, ok := resolver.Resolve(ev)
	if !ok {
		return encode(ResolveResponse{})
	}
	pt, anchor := [2]float64(hit.Point), [2]float64(hit.Anchor)
	resp := ResolveResponse{Hit: true, Point: &pt, Anchor: &anchor}
	for _, f := range hit.Features {
		resp.Features = append(resp.Features, f.ID)
	}
	return encode(resp)
}

// applyFilter runs the actions and returns the layer filter expression.
func applyFilter(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("missing arguments"))
	}

	var req FilterRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult(fmt.Errorf("failed to parse request: %w", err))
	}

	state := filter.NewState(req.Categories)
	for _, a := range req.Actions {
		next, err := state.Apply(a)
		if err != nil {
			return errorResult(err)
		}
		state = next
	}
	return encode(FilterResponse{
		Filter:     state.Expr(),
		Variant:    "sel-" + state.Key(),
		Selections: state.Snapshot(),
	})
}

func main() {
	c := make(chan struct{})

	js.Global().Set("civicmapsResolve", js.FuncOf(resolve))
	js.Global().Set("civicmapsFilter", js.FuncOf(applyFilter))

	fmt.Println("civicmaps WASM module loaded")
	<-c
}
