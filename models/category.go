package models

import "strings"

// Category groups portal event types for notification filtering.
type Category string

const (
	CategoryAssignment Category = "assignment"
	CategoryContent    Category = "content"
	CategoryGeneral    Category = "general"
)

// Digit is the character that enables this category in an allowed-events
// string such as "123".
func (c Category) Digit() string {
	switch c {
	case CategoryAssignment:
		return "1"
	case CategoryContent:
		return "2"
	default:
		return "3"
	}
}

func (c Category) String() string {
	return string(c)
}

// CategoryOf maps a portal event type ("AS:AS_AVAIL", "CO:CO_AVAIL", ...) to
// its Category.
func CategoryOf(eventType string) Category {
	switch {
	case strings.HasPrefix(eventType, "AS"):
		return CategoryAssignment
	case strings.HasPrefix(eventType, "CO"):
		return CategoryContent
	default:
		return CategoryGeneral
	}
}

// EventAssignmentAvailable is the event type posted when an assignment opens.
const EventAssignmentAvailable = "AS:AS_AVAIL"
