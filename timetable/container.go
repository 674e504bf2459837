package timetable

import (
	"fmt"
	"iter"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// seqWidth is the number of zero-padded digits after the prefix.
const seqWidth = 6

// FormatID builds the identifier for sequence number n under prefix.
func FormatID(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, seqWidth, n)
}

// ParseSeq extracts the sequence number from an identifier issued under
// prefix. ok is false for identifiers not in that form.
func ParseSeq(prefix, id string) (n int, ok bool) {
	if len(id) < len(prefix)+seqWidth || id[:len(prefix)] != prefix {
		return 0, false
	}
	digits := id[len(prefix):]
	if len(digits) > seqWidth && digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Container owns children of exactly one type C, keyed by identifier in
// registration order. It is embedded by the container entity types and is
// only usable after init.
//
// Containers are not safe for concurrent use.
type Container[C Entity] struct {
	node
	kind     Kind
	child    Kind
	children *orderedmap.OrderedMap[string, C]

	// every sequence number below lowestFree is in use
	lowestFree int
}

// init validates the kind declaration against C and prepares the child map.
func (c *Container[C]) init(kind Kind) error {
	var zero C
	if any(zero) == nil {
		return fmt.Errorf("%w: child type must be a concrete entity type", ErrConfiguration)
	}
	if err := validateContainer(kind, zero.Kind()); err != nil {
		return err
	}
	c.kind = kind
	c.child = kind.ChildKind()
	c.children = orderedmap.New[string, C]()
	return nil
}

func (c *Container[C]) ready() error {
	if c.children == nil {
		return fmt.Errorf("%w: container used before construction", ErrConfiguration)
	}
	return nil
}

// Prefix returns the container's own identifier prefix.
func (c *Container[C]) Prefix() string { return c.kind.Prefix() }

// ChildKind returns the kind of children this container accepts.
func (c *Container[C]) ChildKind() Kind { return c.child }

// Add registers children in call order. Children without an identifier get
// the smallest free one; children with one must not collide. Adding a child
// this container already holds, or the same child twice in one call, is a
// *DuplicateIDError; a child owned by another container is ErrAlreadyRegistered.
// The call is all or nothing: on error the container is unchanged and no
// identifier is issued.
func (c *Container[C]) Add(children ...C) error {
	if err := c.ready(); err != nil {
		return err
	}

	type placement struct {
		child C
		id    string
	}
	plan := make([]placement, 0, len(children))
	batch := make(map[string]struct{}, len(children))
	seen := make(map[*node]string, len(children))
	hint := c.lowestFree
	prefix := c.child.Prefix()

	for _, child := range children {
		if isNil(child) {
			return ErrNilEntity
		}
		n := child.base()
		if planned, dup := seen[n]; dup {
			return &DuplicateIDError{ID: planned}
		}
		if n.registered {
			if owned, ok := c.children.Get(n.id); ok && owned.base() == n {
				return &DuplicateIDError{ID: n.id}
			}
			return fmt.Errorf("%w: %s %q", ErrAlreadyRegistered, c.child, n.id)
		}

		id := n.id
		if id == "" {
			var seq int
			seq, id = c.nextFree(prefix, hint, batch)
			hint = seq + 1
		} else if c.taken(id, batch) {
			return &DuplicateIDError{ID: id}
		}
		batch[id] = struct{}{}
		seen[n] = id
		plan = append(plan, placement{child: child, id: id})
	}

	for _, p := range plan {
		n := p.child.base()
		n.id = p.id
		n.registered = true
		c.children.Set(p.id, p.child)
	}
	c.lowestFree = hint
	return nil
}

// AddEntity is Add for callers holding untyped entities. Each entity's
// concrete type must be exactly C; embedding types are rejected.
func (c *Container[C]) AddEntity(entities ...Entity) error {
	if err := c.ready(); err != nil {
		return err
	}
	typed := make([]C, 0, len(entities))
	for _, e := range entities {
		if isNil(e) {
			return ErrNilEntity
		}
		child, ok := e.(C)
		if !ok {
			return &TypeMismatchError{Expected: c.child, Got: fmt.Sprintf("%s (%T)", e.Kind(), e)}
		}
		typed = append(typed, child)
	}
	return c.Add(typed...)
}

// Remove unregisters children by identifier. Removed children keep their
// identifier. If any identifier is absent nothing is removed.
func (c *Container[C]) Remove(ids ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	batch := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := batch[id]; dup {
			return &MissingEntityError{ID: id}
		}
		if _, ok := c.children.Get(id); !ok {
			return &MissingEntityError{ID: id}
		}
		batch[id] = struct{}{}
	}

	prefix := c.child.Prefix()
	for _, id := range ids {
		child, _ := c.children.Delete(id)
		child.base().registered = false
		if seq, ok := ParseSeq(prefix, id); ok && seq < c.lowestFree {
			c.lowestFree = seq
		}
	}
	return nil
}

// Child returns the child registered under id.
func (c *Container[C]) Child(id string) (C, bool) {
	if c.children == nil {
		var zero C
		return zero, false
	}
	return c.children.Get(id)
}

// Children returns the children in registration order.
func (c *Container[C]) Children() []C {
	out := make([]C, 0, c.Len())
	if c.children == nil {
		return out
	}
	for pair := c.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// All yields identifier and child pairs in registration order.
func (c *Container[C]) All() iter.Seq2[string, C] {
	return func(yield func(string, C) bool) {
		if c.children == nil {
			return
		}
		for pair := c.children.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Entities returns the children in registration order as untyped entities.
func (c *Container[C]) Entities() []Entity {
	children := c.Children()
	out := make([]Entity, len(children))
	for i, child := range children {
		out[i] = child
	}
	return out
}

// IDs returns the registered identifiers in registration order.
func (c *Container[C]) IDs() []string {
	out := make([]string, 0, c.Len())
	if c.children == nil {
		return out
	}
	for pair := c.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of registered children.
func (c *Container[C]) Len() int {
	if c.children == nil {
		return 0
	}
	return c.children.Len()
}

// Metadata returns this container's attributes with the metadata of every
// descendant nested under Children, in registration order.
func (c *Container[C]) Metadata() Metadata {
	md := c.leafMetadata(c.kind)
	children := c.Children()
	if len(children) == 0 {
		return md
	}
	md.Children = make([]Metadata, len(children))
	for i, child := range children {
		md.Children[i] = child.Metadata()
	}
	return md
}

func (c *Container[C]) taken(id string, batch map[string]struct{}) bool {
	if _, ok := batch[id]; ok {
		return true
	}
	_, ok := c.children.Get(id)
	return ok
}

// nextFree scans upward from hint for the first sequence number whose
// identifier is neither registered nor claimed by the current batch.
func (c *Container[C]) nextFree(prefix string, hint int, batch map[string]struct{}) (int, string) {
	for n := hint; ; n++ {
		id := FormatID(prefix, n)
		if !c.taken(id, batch) {
			return n, id
		}
	}
}
