package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrUnknownCategory is returned when an action names a category the
	// dashboard does not have.
	ErrUnknownCategory = errors.New("unknown filter category")
	// ErrUnknownAction is returned for an unrecognised action kind.
	ErrUnknownAction = errors.New("unknown filter action")
)

// ActionKind names a checkbox-panel interaction.
type ActionKind string

const (
	ActionSelectAll   ActionKind = "select_all"
	ActionUnselectAll ActionKind = "unselect_all"
	ActionSet         ActionKind = "set"
)

// Action is one user interaction with a category's checkbox group.
type Action struct {
	Kind     ActionKind `json:"action"`
	Category string     `json:"category"`
	Values   []string   `json:"values,omitempty"` // Full new selection for ActionSet
}

// SelectAll returns the "Select All" action for a category.
func SelectAll(category string) Action {
	return Action{Kind: ActionSelectAll, Category: category}
}

// UnselectAll returns the "Unselect All" action for a category.
func UnselectAll(category string) Action {
	return Action{Kind: ActionUnselectAll, Category: category}
}

// Set returns the action a checkbox group emits on change.
func Set(category string, values ...string) Action {
	return Action{Kind: ActionSet, Category: category, Values: values}
}

// State holds one Selection per category. It is a value: Apply returns a
// new State and leaves the receiver untouched.
type State struct {
	categories []Category
	selections map[string]Selection
}

// NewState selects every option of every category.
func NewState(categories []Category) State {
	sel := make(map[string]Selection, len(categories))
	for _, c := range categories {
		sel[c.Key] = All(c)
	}
	return State{categories: categories, selections: sel}
}

// Restore rebuilds a state from a Snapshot. Categories missing from the
// snapshot start fully selected.
func Restore(categories []Category, snap map[string][]string) State {
	s := NewState(categories)
	for _, c := range categories {
		if values, ok := snap[c.Key]; ok {
			s.selections[c.Key] = NewSelection(c, values)
		}
	}
	return s
}

// Apply is the single reducer for every category: it replaces the named
// category's selection wholesale and returns the new state.
func (s State) Apply(a Action) (State, error) {
	c, ok := s.category(a.Category)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownCategory, a.Category)
	}

	var next Selection
	switch a.Kind {
	case ActionSelectAll:
		next = All(c)
	case ActionUnselectAll:
		next = None()
	case ActionSet:
		next = NewSelection(c, a.Values)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}

	sel := make(map[string]Selection, len(s.selections))
	for k, v := range s.selections {
		sel[k] = v
	}
	sel[c.Key] = next
	return State{categories: s.categories, selections: sel}, nil
}

// Selection returns the current selection of a category.
func (s State) Selection(key string) (Selection, bool) {
	sel, ok := s.selections[key]
	return sel, ok
}

// Categories returns the categories in tab order.
func (s State) Categories() []Category {
	return s.categories
}

// Expr rebuilds the layer filter from every category: a feature is shown
// only when each category's selection admits it.
func (s State) Expr() Expr {
	parts := make(AllOf, 0, len(s.categories))
	for _, c := range s.categories {
		sel := s.selections[c.Key]
		if sel.Empty() {
			return Const(false)
		}
		parts = append(parts, Membership(c, sel))
	}
	switch len(parts) {
	case 0:
		return Const(true)
	case 1:
		return parts[0]
	default:
		return parts
	}
}

// Snapshot returns the selected values per category.
func (s State) Snapshot() map[string][]string {
	out := make(map[string][]string, len(s.selections))
	for k, v := range s.selections {
		out[k] = v.Values()
	}
	return out
}

// AllSelected reports whether every category has every option checked.
func (s State) AllSelected() bool {
	for _, c := range s.categories {
		if s.selections[c.Key].Len() != len(c.Options) {
			return false
		}
	}
	return true
}

// Key identifies the filter for caching rendered output. The unfiltered
// state is always "all".
func (s State) Key() string {
	if s.AllSelected() {
		return "all"
	}
	var b strings.Builder
	for _, c := range s.categories {
		b.WriteString(c.Key)
		b.WriteByte('=')
		b.WriteString(strings.Join(s.selections[c.Key].values, ","))
		b.WriteByte(';')
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func (s State) category(key string) (Category, bool) {
	for _, c := range s.categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}
