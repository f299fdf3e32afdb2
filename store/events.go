package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"sharecal/models"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var scheduleHeader = []string{"id", "date", "start_time", "end_time", "title", "memo", "account", "attachment"}

func (s *Store) loadEvents() ([]models.Event, error) {
	file, err := os.Open(s.path(scheduleFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Older schedule files predate the attachment column
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, scheduleFile, err)
	}

	var events []models.Event
	for i, record := range records {
		if i == 0 {
			continue // header
		}
		if len(record) < 7 {
			return nil, fmt.Errorf("%w: %s: row %d has %d columns", ErrCorruptState, scheduleFile, i+1, len(record))
		}
		date, err := time.Parse(DateLayout, record[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: %v", ErrCorruptState, scheduleFile, i+1, err)
		}
		start, err := time.Parse(TimeLayout, record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: %v", ErrCorruptState, scheduleFile, i+1, err)
		}
		end, err := time.Parse(TimeLayout, record[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: %v", ErrCorruptState, scheduleFile, i+1, err)
		}
		event := models.Event{
			ID:      record[0],
			Date:    date,
			Start:   start,
			End:     end,
			Title:   record[4],
			Memo:    record[5],
			Account: record[6],
		}
		if len(record) > 7 {
			event.Attachment = record[7]
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Store) saveEvents(events []models.Event) error {
	file, err := os.Create(s.path(scheduleFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(scheduleHeader); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			e.ID,
			e.Date.Format(DateLayout),
			e.Start.Format(TimeLayout),
			e.End.Format(TimeLayout),
			e.Title,
			e.Memo,
			e.Account,
			e.Attachment,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Events returns the events owned by any of the visible accounts, sorted
// by date then start time.
func (s *Store) Events(visible []string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadEvents()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(visible))
	for _, name := range visible {
		set[name] = true
	}
	var events []models.Event
	for _, e := range all {
		if set[e.Account] {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// Event looks up a single event by id.
func (s *Store) Event(id string) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadEvents()
	if err != nil {
		return models.Event{}, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Event{}, ErrUnknownEvent
}

// CreateEvent validates the event, assigns it a fresh id, appends it and
// rewrites the schedule file. The stored event is returned.
func (s *Store) CreateEvent(event models.Event) (models.Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return models.Event{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !event.Start.Before(event.End) {
		return models.Event{}, fmt.Errorf("%w: start time must be before end time", ErrValidation)
	}
	event.Title = strings.TrimSpace(event.Title)
	event.Memo = strings.TrimSpace(event.Memo)

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadEvents()
	if err != nil {
		return models.Event{}, err
	}
	event.ID = uuid.NewString()
	all = append(all, event)
	if err := s.saveEvents(all); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// UpdateEvent overwrites the mutable fields of the event with the given
// id. The owning account and date are fixed at creation; times are not
// re-validated on edit. An empty fields.Attachment keeps the current one.
func (s *Store) UpdateEvent(id string, visible []string, fields models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadEvents()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if !contains(visible, all[i].Account) {
			return ErrNotEditable
		}
		all[i].Title = fields.Title
		all[i].Start = fields.Start
		all[i].End = fields.End
		all[i].Memo = fields.Memo
		if fields.Attachment != "" {
			all[i].Attachment = fields.Attachment
		}
		return s.saveEvents(all)
	}
	return ErrUnknownEvent
}

// DeleteEvent removes the event with the given id, subject to the same
// editability rule as UpdateEvent.
func (s *Store) DeleteEvent(id string, visible []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadEvents()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if !contains(visible, all[i].Account) {
			return ErrNotEditable
		}
		all = append(all[:i], all[i+1:]...)
		return s.saveEvents(all)
	}
	return ErrUnknownEvent
}
