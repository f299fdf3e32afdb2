package models

import "time"

// Account is a display identity that owns events. The login id is the
// credential identifier and is distinct from the display name; both are
// unique across all records.
type Account struct {
	Name         string `json:"account"`
	LoginID      string `json:"username"`
	PasswordHash string `json:"password"`
}

// Event is a single timed calendar entry. Date carries only the calendar
// day; Start and End carry only the wall-clock time on that day.
type Event struct {
	ID         string
	Date       time.Time
	Start      time.Time
	End        time.Time
	Title      string
	Memo       string
	Account    string
	Attachment string // relative path under the upload dir, empty if none
}

// StartAt combines the event date and start time into a full timestamp.
func (e Event) StartAt() time.Time {
	return at(e.Date, e.Start)
}

// EndAt combines the event date and end time into a full timestamp.
func (e Event) EndAt() time.Time {
	return at(e.Date, e.End)
}

func at(d, clock time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local)
}
