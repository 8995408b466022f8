package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"daycard/internal/model"
)

// dateTimeLayout is how Graph writes dateTimeTimeZone.dateTime. Fractional
// seconds, when present, are accepted by time.Parse after the seconds field.
const dateTimeLayout = "2006-01-02T15:04:05"

// DateTimeZone is Graph's dateTimeTimeZone resource.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Time parses the value in its own zone. An unknown or empty zone is
// treated as UTC.
func (d DateTimeZone) Time() (time.Time, error) {
	if d.DateTime == "" {
		return time.Time{}, errors.New("empty dateTime")
	}
	loc := time.UTC
	if d.TimeZone != "" {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(dateTimeLayout, d.DateTime, loc)
}

type OnlineMeeting struct {
	JoinURL string `json:"joinUrl"`
}

// OutlookEvent is the subset of the Graph event resource the card uses.
type OutlookEvent struct {
	ID              string         `json:"id"`
	Subject         string         `json:"subject"`
	Start           DateTimeZone   `json:"start"`
	End             DateTimeZone   `json:"end"`
	IsAllDay        bool           `json:"isAllDay"`
	IsOnlineMeeting bool           `json:"isOnlineMeeting"`
	OnlineMeeting   *OnlineMeeting `json:"onlineMeeting,omitempty"`
	Categories      []string       `json:"categories"`
}

// Events lists the signed-in user's events that start at or after start and
// end at or before end. Failures yield an empty slice.
func (c *Client) Events(ctx context.Context, start, end time.Time) []OutlookEvent {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("start/dateTime ge '%s' and end/dateTime le '%s'",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)))

	var out collection[OutlookEvent]
	if err := c.do(ctx, "GET", "/me/events", q, nil, &out); err != nil {
		logFailure("graph events request failed", err)
		return []OutlookEvent{}
	}
	if out.Value == nil {
		return []OutlookEvent{}
	}
	return out.Value
}

// TodaysEvents lists events of the calendar day containing day, in day's
// location.
func (c *Client) TodaysEvents(ctx context.Context, day time.Time) []OutlookEvent {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return c.Events(ctx, start, start.AddDate(0, 0, 1))
}

// ToEvent converts an Outlook event for the card. Times are converted to
// loc; categories are mapped with m.
func ToEvent(e OutlookEvent, loc *time.Location, m model.CategoryMatcher) (model.Event, error) {
	start, err := e.Start.Time()
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", e.ID, err)
	}
	end, err := e.End.Time()
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s end: %w", e.ID, err)
	}
	if loc != nil {
		start, end = start.In(loc), end.In(loc)
	}

	ev := model.Event{
		ID:       e.ID,
		Title:    e.Subject,
		Start:    start,
		End:      end,
		Category: m.Match(e.Categories),
		Online:   e.IsOnlineMeeting,
	}
	if e.OnlineMeeting != nil {
		ev.JoinURL = e.OnlineMeeting.JoinURL
	}
	return ev, nil
}
