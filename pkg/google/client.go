package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// NewCalendar resolves the calendar whose summary is calendarName and returns a client for it.
func NewCalendar(ctx context.Context, hc *http.Client, calendarName string, opts ...option.ClientOption) (*CalendarClient, error) {
	srv, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar client: %w", err)
	}

	var calendarID string
	err = srv.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			if calendarID == "" && item.Summary == calendarName {
				calendarID = item.Id
			}
		}
		return nil
	})
	if err != nil {
		return nil, remoteError(calendarService, "list calendars", err)
	}
	if calendarID == "" {
		return nil, fmt.Errorf("calendar '%s' not found", calendarName)
	}

	return NewCalendarClient(srv, calendarID), nil
}

// NewTasks returns a Google Tasks client.
func NewTasks(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*TasksClient, error) {
	srv, err := tasks.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Tasks client: %w", err)
	}
	return NewTasksClient(srv), nil
}
