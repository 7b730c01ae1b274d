package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedExpr is returned by ParseExpr for expressions outside the
// membership subset this package understands.
var ErrUnsupportedExpr = errors.New("unsupported filter expression")

// Expr is a layer filter. It marshals to the map engine's expression syntax
// and can be evaluated against a feature's properties, so every consumer
// applies the same predicate the browser receives.
type Expr interface {
	Eval(props map[string]any) bool
	json.Marshaler
}

// Const is a literal boolean filter. Const(false) is the explicit empty match.
type Const bool

// Eval implements Expr.
func (c Const) Eval(map[string]any) bool { return bool(c) }

// MarshalJSON implements json.Marshaler.
func (c Const) MarshalJSON() ([]byte, error) { return json.Marshal(bool(c)) }

// In matches features whose Property equals one of Values:
// ["in", ["get", property], ["literal", values]].
type In struct {
	Property string
	Values   []any
}

// Eval implements Expr.
func (in In) Eval(props map[string]any) bool {
	v, ok := props[in.Property]
	if !ok {
		return false
	}
	for _, w := range in.Values {
		if equalValues(v, w) {
			return true
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (in In) MarshalJSON() ([]byte, error) {
	values := in.Values
	if values == nil {
		values = []any{}
	}
	return json.Marshal([]any{"in", []any{"get", in.Property}, []any{"literal", values}})
}

// AllOf matches when every sub-expression matches: ["all", ...].
type AllOf []Expr

// Eval implements Expr.
func (a AllOf) Eval(props map[string]any) bool {
	for _, e := range a {
		if !e.Eval(props) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (a AllOf) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(a)+1)
	out = append(out, "all")
	for _, e := range a {
		out = append(out, e)
	}
	return json.Marshal(out)
}

// Membership builds the filter for one category's selection.
func Membership(c Category, s Selection) Expr {
	if s.Empty() {
		return Const(false)
	}
	return In{Property: c.Property, Values: c.literals(s.values)}
}

// ParseExpr decodes an expression in the engine's JSON syntax. Only
// booleans, "in" with a "get" and a literal array, and "all" are accepted.
func ParseExpr(data []byte) (Expr, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode filter expression: %w", err)
	}
	return parseValue(raw)
}

func parseValue(raw any) (Expr, error) {
	switch v := raw.(type) {
	case bool:
		return Const(v), nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrUnsupportedExpr)
		}
		op, _ := v[0].(string)
		switch op {
		case "all":
			out := make(AllOf, 0, len(v)-1)
			for _, sub := range v[1:] {
				e, err := parseValue(sub)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		case "in":
			return parseIn(v)
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedExpr, op)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedExpr, raw)
	}
}

func parseIn(v []any) (Expr, error) {
	if len(v) != 3 {
		return nil, fmt.Errorf("%w: \"in\" takes 2 arguments", ErrUnsupportedExpr)
	}
	get, ok := v[1].([]any)
	if !ok || len(get) != 2 || get[0] != "get" {
		return nil, fmt.Errorf("%w: \"in\" needle must be [\"get\", property]", ErrUnsupportedExpr)
	}
	prop, ok := get[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: property name must be a string", ErrUnsupportedExpr)
	}

	haystack := v[2]
	if lit, ok := haystack.([]any); ok && len(lit) == 2 && lit[0] == "literal" {
		haystack = lit[1]
	}
	values, ok := haystack.([]any)
	if !ok {
		// A scalar haystack (the old "sndk" sentinel) matches nothing useful.
		return In{Property: prop, Values: []any{haystack}}, nil
	}
	return In{Property: prop, Values: values}, nil
}

// equalValues compares two scalars, treating all numeric types as float64.
// Strings never equal numbers.
func equalValues(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
