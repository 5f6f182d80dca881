package portal

import (
	"fmt"

	"github.com/CosmoTheDev/coursewatch/models"
)

// Course is one entry of the stream's course directory.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NoticeStream is the decoded loadStream response.
type NoticeStream struct {
	Entries []NoticeEntry `json:"sv_streamEntries"`
	Extras  struct {
		Courses []Course `json:"sx_courses"`
	} `json:"sv_extras"`
}

// CourseNames maps course id to the raw course name.
func (s *NoticeStream) CourseNames() map[string]string {
	names := make(map[string]string, len(s.Extras.Courses))
	for _, c := range s.Extras.Courses {
		names[c.ID] = c.Name
	}
	return names
}

// NoticeEntry is one raw alert of the notice stream.
type NoticeEntry struct {
	ID        models.ID `json:"se_id"`
	Timestamp int64     `json:"se_timestamp"` // epoch milliseconds
	CourseID  string    `json:"se_courseId"`
	// Context is the title markup, Details the body markup.
	Context      string `json:"se_context"`
	Details      string `json:"se_details"`
	ItemURI      string `json:"se_itemUri"`
	ExtraAttribs struct {
		EventType string `json:"event_type"`
	} `json:"extraAttribs"`
	ItemSpecificData struct {
		NotificationDetails struct {
			DueDate *string `json:"dueDate"`
		} `json:"notificationDetails"`
	} `json:"itemSpecificData"`
}

// EventType returns the portal event type, e.g. "AS:AS_AVAIL".
func (e *NoticeEntry) EventType() string { return e.ExtraAttribs.EventType }

// DueDate returns the assignment due date carried by the entry, if any.
func (e *NoticeEntry) DueDate() (string, bool) {
	d := e.ItemSpecificData.NotificationDetails.DueDate
	if d == nil || *d == "" {
		return "", false
	}
	return *d, true
}

func (e *NoticeEntry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: notice entry without se_id", ErrMalformed)
	}
	if e.Timestamp == 0 {
		return fmt.Errorf("%w: notice entry %s without se_timestamp", ErrMalformed, e.ID)
	}
	return nil
}

// CalendarEntry is one raw event of the calendar feed. ID doubles as the
// calendar id of the detail page.
type CalendarEntry struct {
	ID           models.ID `json:"id"`
	EndDate      string    `json:"endDate"`
	CalendarName string    `json:"calendarName"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
}

func (e *CalendarEntry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: calendar entry without id", ErrMalformed)
	}
	if e.EndDate == "" {
		return fmt.Errorf("%w: calendar entry %s without endDate", ErrMalformed, e.ID)
	}
	return nil
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Errors  struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	} `json:"errors"`
}
