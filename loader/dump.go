package loader

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/timetable/timetable"
)

// Dump writes t in the format read by Load. Every registered entity is written
// with its identifier, so loading the output reproduces the same identifiers.
func Dump(w io.Writer, t *timetable.Timetable) error {
	root, err := encode(t)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return enc.Close()
}

func encode(e timetable.Entity) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if id := e.ID(); id != "" {
		m.Content = append(m.Content, scalar(IDKey), scalar(id))
	}

	for name, value := range e.Attributes().All() {
		if name == IDKey || isChildKey(name) {
			return nil, fmt.Errorf("%s %s: attribute %q uses a reserved key", e.Kind(), e.ID(), name)
		}
		v := new(yaml.Node)
		if err := v.Encode(value); err != nil {
			return nil, fmt.Errorf("%s %s: attribute %q: %w", e.Kind(), e.ID(), name, err)
		}
		m.Content = append(m.Content, scalar(name), v)
	}

	p, ok := e.(timetable.Parent)
	if !ok || len(p.Entities()) == 0 {
		return m, nil
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, child := range p.Entities() {
		c, err := encode(child)
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, c)
	}
	m.Content = append(m.Content, scalar(ChildKey(p.ChildKind())), seq)
	return m, nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
