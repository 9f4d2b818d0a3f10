package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

// utcPreference makes Graph return event times in UTC.
var utcPreference = map[string]string{"Prefer": `outlook.timezone="UTC"`}

type event struct {
	ID          string            `json:"id,omitempty"`
	Subject     string            `json:"subject"`
	BodyPreview string            `json:"bodyPreview,omitempty"`
	Body        *itemBody         `json:"body,omitempty"`
	Start       *dateTimeTimeZone `json:"start"`
	End         *dateTimeTimeZone `json:"end"`
	Importance  string            `json:"importance,omitempty"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// FetchEvents lists calendar view occurrences overlapping [start, end).
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	q := url.Values{
		"startdatetime": {start.UTC().Format(time.RFC3339)},
		"enddatetime":   {end.UTC().Format(time.RFC3339)},
		"$top":          {"1000"},
		"$select":       {"id,subject,bodyPreview,start,end"},
	}
	items, err := getAll[event](ctx, c, "list events", c.url("/me/calendarview", q), utcPreference)
	if err != nil {
		return nil, err
	}

	out := make([]model.Event, 0, len(items))
	for _, item := range items {
		ev, err := item.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// CreateEvent posts a new event with UTC times. The body is sent as plain text.
func (c *Client) CreateEvent(ctx context.Context, ev model.NewEvent) (model.Event, error) {
	importance := string(ev.Importance)
	if importance == "" {
		importance = string(model.ImportanceNormal)
	}
	req := event{
		Subject:    ev.Title,
		Body:       &itemBody{ContentType: "text", Content: ev.Body},
		Start:      &dateTimeTimeZone{DateTime: ev.Start.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		End:        &dateTimeTimeZone{DateTime: ev.End.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		Importance: importance,
	}

	var created event
	if err := c.do(ctx, "create event", http.MethodPost, c.url("/me/events", nil), req, http.StatusCreated, &created, utcPreference); err != nil {
		return model.Event{}, err
	}
	if created.BodyPreview == "" {
		created.BodyPreview = ev.Body
	}
	return created.toEvent()
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, "delete event", http.MethodDelete, c.url("/me/events/"+url.PathEscape(id), nil), nil, http.StatusNoContent, nil, nil)
}

func (e event) toEvent() (model.Event, error) {
	start, ok := e.Start.parse()
	if !ok {
		return model.Event{}, fmt.Errorf("%s: event %s has no readable start", service, e.ID)
	}
	end, ok := e.End.parse()
	if !ok {
		return model.Event{}, fmt.Errorf("%s: event %s has no readable end", service, e.ID)
	}
	return model.Event{
		ID:          e.ID,
		Subject:     e.Subject,
		Start:       start,
		End:         end,
		BodyPreview: e.BodyPreview,
	}, nil
}
