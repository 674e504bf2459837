package timetable

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a container is handed an entity whose
	// concrete type is not the container's accepted child type.
	ErrTypeMismatch = errors.New("timetable: entity type not accepted by container")

	// ErrDuplicateID is returned when an entity carries an identifier that is
	// already registered in the target container.
	ErrDuplicateID = errors.New("timetable: identifier already registered")

	// ErrMissingAttribute is returned when removing an attribute that is not set.
	ErrMissingAttribute = errors.New("timetable: attribute not found")

	// ErrMissingEntity is returned when removing an identifier the container does not hold.
	ErrMissingEntity = errors.New("timetable: entity not found")

	// ErrConfiguration is returned when a container kind lacks a valid declaration
	// (prefix or accepted child kind), or a container was not built by its constructor.
	ErrConfiguration = errors.New("timetable: invalid container declaration")

	// ErrAlreadyRegistered is returned when an entity that is owned by a container
	// is added to another one, or its identifier is changed while owned.
	ErrAlreadyRegistered = errors.New("timetable: entity already registered")

	// ErrNilEntity is returned when a nil entity is passed to a container.
	ErrNilEntity = errors.New("timetable: nil entity")
)

// TypeMismatchError reports the kind a container expected and the Go type it got.
type TypeMismatchError struct {
	Expected Kind
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("timetable: argument must be a(n) %s, got %s", e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// DuplicateIDError reports the identifier that collided.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("timetable: an entity with id %q already exists in this container", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// MissingAttributeError reports the attribute name that was not present.
type MissingAttributeError struct {
	Name string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("timetable: attribute %q not found", e.Name)
}

func (e *MissingAttributeError) Is(target error) bool { return target == ErrMissingAttribute }

// MissingEntityError reports the identifier that was not present.
type MissingEntityError struct {
	ID string
}

func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("timetable: no entity with id %q", e.ID)
}

func (e *MissingEntityError) Is(target error) bool { return target == ErrMissingEntity }
