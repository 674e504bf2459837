// Package loader reads and writes timetables as YAML documents.
//
// A document is a mapping per entity. The key "id" holds the entity's
// identifier, the key named after its children ("days", "periods", "courses"
// or "instructors") holds a sequence of child mappings, and every other key is
// an attribute. Key order is preserved in both directions.
//
//	name: Fall term
//	days:
//	  - name: Monday
//	    periods:
//	      - id: PER000003
//	        name: 9AM
//	        courses:
//	          - name: Math 7
//	            room: B12
//	            instructors:
//	              - name: Bob
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/timetable/timetable"
)

// IDKey is the reserved key holding an entity's identifier.
const IDKey = "id"

var childKeys = map[timetable.Kind]string{
	timetable.KindDay:        "days",
	timetable.KindPeriod:     "periods",
	timetable.KindCourse:     "courses",
	timetable.KindInstructor: "instructors",
}

// ErrEmpty is returned for a document without content.
var ErrEmpty = errors.New("loader: empty document")

// Error reports a problem at a position in the source document. Err is set
// when the problem came from the timetable package.
type Error struct {
	Line   int
	Column int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(n *yaml.Node, format string, args ...any) error {
	return &Error{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}

func wrapAt(n *yaml.Node, err error) error {
	return &Error{Line: n.Line, Column: n.Column, Msg: err.Error(), Err: err}
}

// ChildKey returns the document key holding children of the given kind.
func ChildKey(kind timetable.Kind) string {
	return childKeys[kind]
}

// Load decodes a single timetable document.
func Load(r io.Reader) (*timetable.Timetable, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmpty
	}

	e, err := build(timetable.KindTimetable, doc.Content[0])
	if err != nil {
		return nil, err
	}
	return e.(*timetable.Timetable), nil
}

// LoadFile decodes the timetable document at path.
func LoadFile(path string) (*timetable.Timetable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type idAssigner interface {
	AssignID(id string) error
}

func build(kind timetable.Kind, n *yaml.Node) (timetable.Entity, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, errorAt(n, "%s must be a mapping", kind)
	}

	e, err := timetable.New(kind)
	if err != nil {
		return nil, err
	}
	childKind := kind.ChildKind()
	var (
		children []timetable.Entity
		nodes    []*yaml.Node
	)
	seen := make(map[string]struct{}, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, errorAt(k, "%s keys must be scalars", kind)
		}
		if _, dup := seen[k.Value]; dup {
			return nil, errorAt(k, "duplicate key %q", k.Value)
		}
		seen[k.Value] = struct{}{}

		switch {
		case k.Value == IDKey:
			if v.Kind != yaml.ScalarNode || v.Value == "" {
				return nil, errorAt(v, "%s id must be a non-empty string", kind)
			}
			if err := e.(idAssigner).AssignID(v.Value); err != nil {
				return nil, wrapAt(v, err)
			}

		case childKind != timetable.KindUnknown && k.Value == childKeys[childKind]:
			if v.Kind != yaml.SequenceNode {
				return nil, errorAt(v, "%s must be a sequence", k.Value)
			}
			for _, item := range v.Content {
				child, err := build(childKind, item)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
				nodes = append(nodes, item)
			}

		case isChildKey(k.Value):
			return nil, errorAt(k, "%s cannot hold %s", kind, k.Value)

		default:
			var value any
			if err := v.Decode(&value); err != nil {
				return nil, errorAt(v, "attribute %q: %v", k.Value, err)
			}
			e.SetAttribute(k.Value, value)
		}
	}

	if len(children) > 0 {
		p := e.(timetable.Parent)
		for i, child := range children {
			if err := p.AddEntity(child); err != nil {
				return nil, wrapAt(nodes[i], err)
			}
		}
	}
	return e, nil
}

func isChildKey(key string) bool {
	for _, k := range childKeys {
		if k == key {
			return true
		}
	}
	return false
}
