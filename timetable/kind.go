package timetable

import (
	"fmt"
	"strings"
)

// Kind identifies one of the entity types of the containment hierarchy.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInstructor
	KindCourse
	KindPeriod
	KindDay
	KindTimetable
)

// PrefixLen is the length of every identifier prefix.
const PrefixLen = 3

// declaration pairs a kind with its identifier prefix and the single child
// kind it accepts (KindUnknown for leaves).
type declaration struct {
	name   string
	prefix string
	child  Kind
}

var declarations = map[Kind]declaration{
	KindInstructor: {name: "instructor", prefix: "INS"},
	KindCourse:     {name: "course", prefix: "COU", child: KindInstructor},
	KindPeriod:     {name: "period", prefix: "PER", child: KindCourse},
	KindDay:        {name: "day", prefix: "DAY", child: KindPeriod},
	KindTimetable:  {name: "timetable", prefix: "TIM", child: KindDay},
}

// Kinds returns every declared kind from the root down to the leaf.
func Kinds() []Kind {
	return []Kind{KindTimetable, KindDay, KindPeriod, KindCourse, KindInstructor}
}

func (k Kind) String() string {
	if d, ok := declarations[k]; ok {
		return d.name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Prefix returns the identifier prefix, or "" for undeclared kinds.
func (k Kind) Prefix() string {
	return declarations[k].prefix
}

// ChildKind returns the kind this kind accepts as children, or KindUnknown for leaves.
func (k Kind) ChildKind() Kind {
	return declarations[k].child
}

// IsContainer reports whether entities of this kind own children.
func (k Kind) IsContainer() bool {
	return declarations[k].child != KindUnknown
}

// ParseKind resolves a kind by its name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, d := range declarations {
		if d.name == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("timetable: unknown kind %q", s)
}

// unknownName is the text form of KindUnknown, as reported by containers
// that were never constructed.
const unknownName = "unknown"

func (k Kind) MarshalText() ([]byte, error) {
	if k == KindUnknown {
		return []byte(unknownName), nil
	}
	if _, ok := declarations[k]; !ok {
		return nil, fmt.Errorf("timetable: cannot marshal undeclared kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	if string(text) == unknownName {
		*k = KindUnknown
		return nil
	}
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// validateContainer checks that kind is declared as a container whose child
// kind is childKind. Returns ErrConfiguration otherwise.
func validateContainer(kind, childKind Kind) error {
	d, ok := declarations[kind]
	if !ok {
		return fmt.Errorf("%w: %s is not declared", ErrConfiguration, kind)
	}
	if len(d.prefix) != PrefixLen {
		return fmt.Errorf("%w: %s prefix %q must be %d characters", ErrConfiguration, kind, d.prefix, PrefixLen)
	}
	if d.child == KindUnknown {
		return fmt.Errorf("%w: %s does not declare an accepted child kind", ErrConfiguration, kind)
	}
	if d.child != childKind {
		return fmt.Errorf("%w: %s accepts %s, container holds %s", ErrConfiguration, kind, d.child, childKind)
	}
	if cd, ok := declarations[d.child]; !ok || len(cd.prefix) != PrefixLen {
		return fmt.Errorf("%w: child kind %s has no valid prefix", ErrConfiguration, d.child)
	}
	return nil
}
