package timetable

import (
	"fmt"
	"iter"
	"sort"

	"github.com/mitchellh/mapstructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Attributes is an ordered bag of named values. Names enumerate in the order
// they were first set; overwriting a name keeps its position.
type Attributes struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewAttributes returns an empty bag.
func NewAttributes() *Attributes {
	return &Attributes{m: orderedmap.New[string, any]()}
}

func (a *Attributes) lazy() *orderedmap.OrderedMap[string, any] {
	if a.m == nil {
		a.m = orderedmap.New[string, any]()
	}
	return a.m
}

// Set adds or overwrites one attribute.
func (a *Attributes) Set(name string, value any) {
	a.lazy().Set(name, value)
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (any, bool) {
	if a == nil || a.m == nil {
		return nil, false
	}
	return a.m.Get(name)
}

// Has reports whether name is set.
func (a *Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	if a == nil || a.m == nil {
		return 0
	}
	return a.m.Len()
}

// Names returns attribute names in insertion order.
func (a *Attributes) Names() []string {
	names := make([]string, 0, a.Len())
	for name := range a.All() {
		names = append(names, name)
	}
	return names
}

// All iterates over name/value pairs in insertion order.
func (a *Attributes) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a == nil || a.m == nil {
			return
		}
		for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Map returns the attributes as a plain map. Order is lost.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, a.Len())
	for name, value := range a.All() {
		out[name] = value
	}
	return out
}

// Clone returns a shallow copy; values themselves are not copied.
func (a *Attributes) Clone() *Attributes {
	out := NewAttributes()
	for name, value := range a.All() {
		out.m.Set(name, value)
	}
	return out
}

// Merge sets every pair of attrs, in sorted name order.
func (a *Attributes) Merge(attrs map[string]any) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.Set(name, attrs[name])
	}
}

// Remove deletes each name. If any name is absent nothing is removed and a
// *MissingAttributeError naming the first absent name is returned.
func (a *Attributes) Remove(names ...string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup || !a.Has(name) {
			return &MissingAttributeError{Name: name}
		}
		seen[name] = struct{}{}
	}
	for _, name := range names {
		a.m.Delete(name)
	}
	return nil
}

// Decode copies the attributes into out, a pointer to a struct or map, using
// mapstructure tags. Scalar values are weakly converted (e.g. 9 -> "9").
func (a *Attributes) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("timetable: decode attributes: %w", err)
	}
	if err := dec.Decode(a.Map()); err != nil {
		return fmt.Errorf("timetable: decode attributes: %w", err)
	}
	return nil
}

func (a *Attributes) MarshalJSON() ([]byte, error) {
	if a == nil || a.m == nil || a.m.Len() == 0 {
		return []byte("{}"), nil
	}
	return a.m.MarshalJSON()
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, any]()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	a.m = m
	return nil
}

// MarshalYAML emits a mapping in insertion order.
func (a *Attributes) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for name, value := range a.All() {
		v := new(yaml.Node)
		if err := v.Encode(value); err != nil {
			return nil, fmt.Errorf("timetable: attribute %q: %w", name, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, v)
	}
	return n, nil
}

func (a *Attributes) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("timetable: line %d: attributes must be a mapping", n.Line)
	}
	m := orderedmap.New[string, any]()
	for i := 0; i+1 < len(n.Content); i += 2 {
		var value any
		if err := n.Content[i+1].Decode(&value); err != nil {
			return err
		}
		m.Set(n.Content[i].Value, value)
	}
	a.m = m
	return nil
}
