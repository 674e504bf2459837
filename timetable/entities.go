package timetable

import "fmt"

// Instructor is the leaf of the hierarchy.
type Instructor struct {
	node
}

// NewInstructor returns a detached instructor.
func NewInstructor(name string) *Instructor {
	i := &Instructor{}
	i.setName(name)
	return i
}

func (*Instructor) Kind() Kind { return KindInstructor }

func (i *Instructor) Metadata() Metadata { return i.leafMetadata(KindInstructor) }

// Course holds instructors.
type Course struct {
	Container[*Instructor]
}

// NewCourse returns a detached course holding instructors.
func NewCourse(name string, instructors ...*Instructor) (*Course, error) {
	c := &Course{}
	if err := c.init(KindCourse); err != nil {
		return nil, err
	}
	c.setName(name)
	if err := c.Add(instructors...); err != nil {
		return nil, err
	}
	return c, nil
}

func (*Course) Kind() Kind { return KindCourse }

// Instructors returns the course's instructors in registration order.
func (c *Course) Instructors() []*Instructor { return c.Children() }

// Period holds courses.
type Period struct {
	Container[*Course]
}

// NewPeriod returns a detached period holding courses.
func NewPeriod(name string, courses ...*Course) (*Period, error) {
	p := &Period{}
	if err := p.init(KindPeriod); err != nil {
		return nil, err
	}
	p.setName(name)
	if err := p.Add(courses...); err != nil {
		return nil, err
	}
	return p, nil
}

func (*Period) Kind() Kind { return KindPeriod }

// Courses returns the period's courses in registration order.
func (p *Period) Courses() []*Course { return p.Children() }

// Day holds periods.
type Day struct {
	Container[*Period]
}

// NewDay returns a detached day holding periods.
func NewDay(name string, periods ...*Period) (*Day, error) {
	d := &Day{}
	if err := d.init(KindDay); err != nil {
		return nil, err
	}
	d.setName(name)
	if err := d.Add(periods...); err != nil {
		return nil, err
	}
	return d, nil
}

func (*Day) Kind() Kind { return KindDay }

// Periods returns the day's periods in registration order.
func (d *Day) Periods() []*Period { return d.Children() }

// Timetable is the root of the hierarchy and holds days.
type Timetable struct {
	Container[*Day]
}

// NewTimetable returns a timetable holding days.
func NewTimetable(name string, days ...*Day) (*Timetable, error) {
	t := &Timetable{}
	if err := t.init(KindTimetable); err != nil {
		return nil, err
	}
	t.setName(name)
	if err := t.Add(days...); err != nil {
		return nil, err
	}
	return t, nil
}

func (*Timetable) Kind() Kind { return KindTimetable }

// Days returns the timetable's days in registration order.
func (t *Timetable) Days() []*Day { return t.Children() }

// New returns an empty, detached entity of the given kind.
func New(kind Kind) (Entity, error) {
	var (
		e   Entity
		err error
	)
	switch kind {
	case KindInstructor:
		e = NewInstructor("")
	case KindCourse:
		var c *Course
		c, err = NewCourse("")
		e = c
	case KindPeriod:
		var p *Period
		p, err = NewPeriod("")
		e = p
	case KindDay:
		var d *Day
		d, err = NewDay("")
		e = d
	case KindTimetable:
		var t *Timetable
		t, err = NewTimetable("")
		e = t
	default:
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, kind)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
