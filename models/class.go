package models

// Class names an event class. Each class has its own record set.
type Class string

const (
	ClassNotice     Class = "notice"
	ClassAssignment Class = "assignment"
)

// PersonalCourse is the calendar name the portal uses for user-authored events.
const PersonalCourse = "个人"

// Classes lists every known class in run order.
func Classes() []Class { return []Class{ClassNotice, ClassAssignment} }

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	switch c {
	case ClassNotice, ClassAssignment:
		return true
	}
	return false
}
