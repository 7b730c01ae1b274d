package filter

// Selection is the immutable set of checked values of one category, kept in
// option order. It never contains a value the category does not offer.
type Selection struct {
	values []string
}

// NewSelection keeps the values of c that appear in values. Unknown values
// are dropped: they could never match a feature.
func NewSelection(c Category, values []string) Selection {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	out := make([]string, 0, len(values))
	for _, o := range c.Options {
		if want[o.Value] {
			out = append(out, o.Value)
		}
	}
	return Selection{values: out}
}

// All selects every option of c.
func All(c Category) Selection {
	return Selection{values: c.Values()}
}

// None is the empty selection.
func None() Selection {
	return Selection{}
}

// Values returns a copy of the selected values.
func (s Selection) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of selected values.
func (s Selection) Len() int { return len(s.values) }

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s.values) == 0 }

// Contains reports whether v is selected.
func (s Selection) Contains(v string) bool {
	for _, x := range s.values {
		if x == v {
			return true
		}
	}
	return false
}

// Equal reports whether both selections hold the same values.
func (s Selection) Equal(o Selection) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != o.values[i] {
			return false
		}
	}
	return true
}
