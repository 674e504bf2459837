package timetable

import (
	"fmt"
	"reflect"
)

// NameAttr is the attribute constructors store an entity's name under.
const NameAttr = "name"

// Entity is a node of the containment tree. It is implemented only by the
// types of this package.
type Entity interface {
	// Kind returns the entity type.
	Kind() Kind

	// ID returns the identifier issued by the owning container, or "" while detached.
	ID() string

	// Attributes returns a copy of the attribute bag.
	Attributes() *Attributes

	// Attribute returns a single attribute value.
	Attribute(name string) (any, bool)

	// SetAttribute adds or overwrites one attribute.
	SetAttribute(name string, value any)

	// AddAttributes merges attrs into the bag, overwriting existing names.
	AddAttributes(attrs map[string]any)

	// RemoveAttributes deletes the named attributes, all or none.
	RemoveAttributes(names ...string) error

	// Metadata returns the entity's attributes and, for containers, those of
	// every descendant.
	Metadata() Metadata

	base() *node
}

// Parent is an Entity that owns children.
type Parent interface {
	Entity

	// ChildKind returns the accepted child kind.
	ChildKind() Kind

	// Entities returns the children in registration order.
	Entities() []Entity

	// AddEntity registers children after checking their concrete type.
	AddEntity(entities ...Entity) error

	// Remove unregisters children by identifier.
	Remove(ids ...string) error
}

// node holds the state shared by every entity.
type node struct {
	id         string
	attrs      Attributes
	registered bool
}

func (n *node) base() *node { return n }

func (n *node) ID() string { return n.id }

// Name returns the name attribute when it is a string.
func (n *node) Name() string {
	v, _ := n.attrs.Get(NameAttr)
	s, _ := v.(string)
	return s
}

// Registered reports whether the entity is currently owned by a container.
func (n *node) Registered() bool { return n.registered }

// AssignID sets an explicit identifier before registration. The container
// will check it for collisions instead of issuing one.
func (n *node) AssignID(id string) error {
	if n.registered {
		return fmt.Errorf("%w: cannot change id %q", ErrAlreadyRegistered, n.id)
	}
	if id == "" {
		return fmt.Errorf("timetable: empty id")
	}
	n.id = id
	return nil
}

// ClearID drops the identifier of an entity that is not registered, so the
// next container it joins issues a fresh one.
func (n *node) ClearID() error {
	if n.registered {
		return fmt.Errorf("%w: cannot clear id %q", ErrAlreadyRegistered, n.id)
	}
	n.id = ""
	return nil
}

func (n *node) Attributes() *Attributes { return n.attrs.Clone() }

func (n *node) Attribute(name string) (any, bool) { return n.attrs.Get(name) }

func (n *node) SetAttribute(name string, value any) { n.attrs.Set(name, value) }

func (n *node) AddAttributes(attrs map[string]any) { n.attrs.Merge(attrs) }

func (n *node) RemoveAttributes(names ...string) error { return n.attrs.Remove(names...) }

func (n *node) setName(name string) {
	if name != "" {
		n.attrs.Set(NameAttr, name)
	}
}

func (n *node) leafMetadata(kind Kind) Metadata {
	return Metadata{ID: n.id, Kind: kind, Attributes: n.attrs.Clone()}
}

// isNil catches typed nil pointers hidden in an interface.
func isNil(e any) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
