// Package timetable models the containment hierarchy of a school timetable:
// timetable, day, period, course and instructor.
//
// Every entity carries an ordered attribute bag and, once registered, an
// identifier issued by the container that owns it. Containers accept exactly
// one child type and never hold two children with the same identifier.
//
// # Hierarchy
//
//	Timetable (TIM) -> Day (DAY) -> Period (PER) -> Course (COU) -> Instructor (INS)
//
// # Identifiers
//
// An identifier is the child kind's 3-character prefix followed by a 6-digit
// zero-padded sequence number, for example "COU000002". A container issues the
// smallest sequence number not currently in use, so numbers freed by [Container.Remove]
// are reused. Identifiers are unique within one container only.
//
//	bob := timetable.NewInstructor("Bob")
//	alice := timetable.NewInstructor("Alice")
//	math, _ := timetable.NewCourse("Math 7", bob, alice)
//	math.IDs() // ["INS000000", "INS000001"]
//
// An entity given an identifier with [Instructor.AssignID] (or one that kept
// its identifier after removal) keeps it; adding it where that identifier is
// taken fails with [ErrDuplicateID].
//
// # Batches
//
// Add, AddEntity, Remove and RemoveAttributes are all or nothing: when any
// element of the call fails, the target is left unchanged.
//
// # Errors
//
//   - [ErrTypeMismatch] - entity type not accepted ([*TypeMismatchError])
//   - [ErrDuplicateID] - identifier already registered ([*DuplicateIDError])
//   - [ErrMissingAttribute] - attribute not set ([*MissingAttributeError])
//   - [ErrMissingEntity] - identifier not registered ([*MissingEntityError])
//   - [ErrConfiguration] - container kind declared incorrectly or not constructed
//   - [ErrAlreadyRegistered] - entity owned by a container
//   - [ErrNilEntity] - nil entity passed to a container
//
// The package does no locking; callers serialize concurrent mutation.
package timetable
