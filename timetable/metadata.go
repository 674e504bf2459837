package timetable

import (
	"errors"
	"strings"
)

// Metadata is the aggregate view of an entity: its own attributes plus the
// metadata of its children, mirroring the containment tree.
type Metadata struct {
	ID         string      `json:"id,omitempty"`
	Kind       Kind        `json:"kind"`
	Attributes *Attributes `json:"attributes"`
	Children   []Metadata  `json:"children,omitempty"`
}

// Count returns the number of entities in the metadata tree, itself included.
func (m Metadata) Count() int {
	n := 1
	for _, c := range m.Children {
		n += c.Count()
	}
	return n
}

// Record is one entry of an Index.
type Record struct {
	ID string `json:"id"`

	// Path joins the identifiers from the first day down to this entity with
	// "/". Identifiers repeat across containers; paths do not.
	Path       string      `json:"path"`
	Attributes *Attributes `json:"attributes"`
	Children   []string    `json:"children,omitempty"`
}

// Index is a flat, per-kind view of a timetable. Records appear in tree order.
type Index struct {
	Days        []Record `json:"Days"`
	Periods     []Record `json:"Periods"`
	Courses     []Record `json:"Courses"`
	Instructors []Record `json:"Instructors"`
}

// Index flattens the timetable into one record list per kind.
func (t *Timetable) Index() Index {
	idx := Index{
		Days:        []Record{},
		Periods:     []Record{},
		Courses:     []Record{},
		Instructors: []Record{},
	}
	_ = Walk(t, func(parent Entity, e Entity, path []string) error {
		rec := Record{
			ID:         e.ID(),
			Path:       strings.Join(path, "/"),
			Attributes: e.Attributes(),
		}
		if p, ok := e.(Parent); ok {
			for _, child := range p.Entities() {
				rec.Children = append(rec.Children, child.ID())
			}
		}
		switch e.Kind() {
		case KindDay:
			idx.Days = append(idx.Days, rec)
		case KindPeriod:
			idx.Periods = append(idx.Periods, rec)
		case KindCourse:
			idx.Courses = append(idx.Courses, rec)
		case KindInstructor:
			idx.Instructors = append(idx.Instructors, rec)
		}
		return nil
	})
	return idx
}

// SkipChildren is returned by a WalkFunc to skip the entity's descendants.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every entity visited by Walk. parent is nil for the
// root. path holds the identifiers from below the root down to e; it is empty
// for the root and must not be retained.
type WalkFunc func(parent, e Entity, path []string) error

// Walk visits root and its descendants depth-first in registration order.
// The first error other than SkipChildren stops the walk and is returned.
func Walk(root Entity, fn WalkFunc) error {
	err := walk(nil, root, nil, fn)
	if errors.Is(err, SkipChildren) {
		return nil
	}
	return err
}

func walk(parent, e Entity, path []string, fn WalkFunc) error {
	if err := fn(parent, e, path); err != nil {
		return err
	}
	p, ok := e.(Parent)
	if !ok {
		return nil
	}
	for _, child := range p.Entities() {
		err := walk(e, child, append(path, child.ID()), fn)
		if err != nil && !errors.Is(err, SkipChildren) {
			return err
		}
	}
	return nil
}
