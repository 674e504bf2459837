package store

import "errors"

var (
	// ErrParentNotFound is returned when the parent entity doesn't exist or is deleted.
	ErrParentNotFound = errors.New("timetable store: parent entity not found")

	// ErrNotFound is returned when an entity or tree doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("timetable store: entity not found")

	// ErrAlreadyExists is returned when an entity already exists at the same path,
	// i.e. its identifier is taken within its parent.
	ErrAlreadyExists = errors.New("timetable store: entity already exists")

	// ErrHasChildren is returned when attempting to delete an entity with active children.
	ErrHasChildren = errors.New("timetable store: entity has active children")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("timetable store: entity was modified concurrently")

	// ErrDuplicateValue is returned when a sibling already holds the same value
	// for one of Config.UniqueAttributes.
	ErrDuplicateValue = errors.New("timetable store: duplicate value for unique attribute")

	// ErrAlreadyDeleted is returned when attempting to delete an already-deleted entity.
	ErrAlreadyDeleted = errors.New("timetable store: entity is already deleted")

	// ErrInvalidRecord is returned for records that cannot be stored or rebuilt.
	ErrInvalidRecord = errors.New("timetable store: invalid record")
)
