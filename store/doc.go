// Package store persists timetables in DynamoDB.
//
// A saved timetable is a tree: every entity is one item of the entity table,
// partitioned by tree id and sorted by path. The root timetable lives at
// [RootPath]; descendants at the slash-joined identifiers below it:
//
//	tree=9f0c...  path=/
//	tree=9f0c...  path=/DAY000000
//	tree=9f0c...  path=/DAY000000/PER000001
//	tree=9f0c...  path=/DAY000000/PER000001/COU000000
//
// # Key Features
//
//   - Parent validation on child creation (atomic)
//   - Orphan protection (prevent deleting parents with children)
//   - Cascading deletes via DynamoDB Streams + TTL
//   - Sibling-unique attributes, e.g. no two courses named "Math 7" in one period
//   - Optimistic locking with version field
//   - Configurable write sharding for the relationship table
//
// # Trees
//
// [Store.SaveTree] writes a whole [timetable.Timetable], parents first, and
// [Store.LoadTree] rebuilds it with the same identifiers and orders. Single
// entities are written with [Store.Create] and [Store.UpdateAttributes].
//
// # Configuration
//
// Use [DefaultConfig] for small datasets (NumShards=1, single queries).
// Increase NumShards for wide parents:
//
//	cfg := store.DefaultConfig()
//	cfg.NumShards = 16
//	cfg.UniqueAttributes = []string{"name"}
//
// # Errors
//
//   - [ErrNotFound] - entity doesn't exist or is deleted
//   - [ErrParentNotFound] - parent validation failed
//   - [ErrAlreadyExists] - the identifier is taken within the parent
//   - [ErrHasChildren] - cannot delete entity with children
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrDuplicateValue] - a sibling already uses the attribute value
//   - [ErrAlreadyDeleted] - the entity is already marked for deletion
//   - [ErrInvalidRecord] - a record or stored item is malformed
package store
