package store

import (
	"io"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ExportHour is the local hour at which exported tasks start.
const ExportHour = 18

// WriteICS renders tasks as a published calendar: one hour-long event per task at
// ExportHour, starting on now's day and moving one day per task.
func WriteICS(w io.Writer, tasks []LocalTask, now time.Time) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//taskslot//local tasks//EN")

	start := time.Date(now.Year(), now.Month(), now.Day(), ExportHour, 0, 0, 0, now.Location())
	for _, t := range tasks {
		ev := cal.AddEvent(strconv.FormatInt(t.ID, 10) + "@taskslot")
		ev.SetDtStampTime(now)
		ev.SetSummary(t.Task)
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(time.Hour))
		ev.SetProperty(ics.ComponentPropertyPriority, strconv.Itoa(t.Priority))
		start = start.AddDate(0, 0, 1)
	}
	return cal.SerializeTo(w)
}
