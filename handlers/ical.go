package handlers

import (
	"log"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarICSHandler exports the session's visible events as an
// iCalendar feed, so the shared schedule can be subscribed to from any
// regular calendar client.
func CalendarICSHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := requireSession(w, r)
	if !ok {
		return
	}

	visible, err := data.Visibility(account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	events, err := data.Events(visible)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//sharecal//sharecal//EN")

	now := time.Now()
	for _, e := range events {
		ev := cal.AddEvent(e.ID)
		ev.SetDtStampTime(now)
		ev.SetStartAt(e.StartAt())
		ev.SetEndAt(e.EndAt())
		ev.SetSummary(e.Title)
		if e.Memo != "" {
			ev.SetDescription(e.Memo)
		}
		ev.SetOrganizer(e.Account)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sharecal.ics"`)
	if err := cal.SerializeTo(w); err != nil {
		log.Printf("Error serializing calendar for %q: %v", account, err)
	}
}
