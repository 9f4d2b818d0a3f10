package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/taskslot/pkg/errs"
	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/util"
)

const (
	calendarService = "google-calendar"

	// highImportanceColor is the "Tomato" event color.
	highImportanceColor = "11"

	taskIDProperty = "taskslot_id"
)

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
}

// NewCalendarClient wraps srv for the calendar with calendarID.
func NewCalendarClient(srv *calendar.Service, calendarID string) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID}
}

// FetchEvents lists events overlapping [start, end), with recurring events expanded.
func (c *CalendarClient) FetchEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	var out []model.Event
	call := c.srv.Events.List(c.calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(2500)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := toEvent(item)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, remoteError(calendarService, "list events", err)
	}
	return out, nil
}

// CreateEvent inserts ev. High importance events get a distinct color; the task id
// is stored in a private extended property as well as the description.
func (c *CalendarClient) CreateEvent(ctx context.Context, ev model.NewEvent) (model.Event, error) {
	event := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Body,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	if ev.Importance == model.ImportanceHigh {
		event.ColorId = highImportanceColor
	}
	if id, ok := util.TaskIDFromBody(ev.Body); ok {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{taskIDProperty: id},
		}
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return model.Event{}, remoteError(calendarService, "create event", err)
	}
	return toEvent(created)
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return remoteError(calendarService, "delete event", err)
	}
	return nil
}

func toEvent(item *calendar.Event) (model.Event, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return model.Event{
		ID:          item.Id,
		Subject:     item.Summary,
		Start:       start,
		End:         end,
		BodyPreview: item.Description,
	}, nil
}

// parseEventTime reads either a timed or an all-day boundary. All-day dates are
// taken as UTC midnight.
func parseEventTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing time")
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	return time.Parse("2006-01-02", dt.Date)
}

// remoteError maps a Google API failure onto the error taxonomy.
func remoteError(service, op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %s: %w", service, op, err)
	}
	if gerr.Code == http.StatusUnauthorized {
		return &errs.AuthError{Provider: "google", Message: op + " was rejected", Cause: err}
	}
	return &errs.RemoteCallError{Service: service, Op: op, Status: gerr.Code, Detail: gerr.Message}
}
