package handlers

import (
	"time"

	"sharecal/models"
	"sharecal/store"
)

// MonthDay is one cell of the month grid.
type MonthDay struct {
	Date    time.Time
	Day     int
	InMonth bool
	Today   bool
	Events  []models.Event
}

// MonthGrid is a month laid out in Sunday-first weeks, padded with the
// neighboring months' days.
type MonthGrid struct {
	Year  int
	Month time.Month
	Weeks [][]MonthDay
}

// buildMonth distributes events over the weeks of the given month.
// Events arrive sorted by (date, start), so each day's entries keep the
// start-time order.
func buildMonth(year int, month time.Month, events []models.Event) MonthGrid {
	byDay := make(map[string][]models.Event)
	for _, e := range events {
		key := e.Date.Format(store.DateLayout)
		byDay[key] = append(byDay[key], e)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	// Pad back to Sunday and forward to Saturday
	cursor := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, 6-int(last.Weekday()))

	today := time.Now()
	grid := MonthGrid{Year: year, Month: month}
	var week []MonthDay
	for !cursor.After(end) {
		week = append(week, MonthDay{
			Date:    cursor,
			Day:     cursor.Day(),
			InMonth: cursor.Month() == month,
			Today: cursor.Year() == today.Year() &&
				cursor.Month() == today.Month() &&
				cursor.Day() == today.Day(),
			Events: byDay[cursor.Format(store.DateLayout)],
		})
		if len(week) == 7 {
			grid.Weeks = append(grid.Weeks, week)
			week = nil
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return grid
}
