package events

import (
	"context"
	"fmt"
	"time"

	"daycard/internal/config"
	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// LocalSource places configured "HH:MM" events on the requested day.
type LocalSource struct {
	events []config.LocalEvent
}

func NewLocalSource(events []config.LocalEvent) *LocalSource {
	return &LocalSource{events: events}
}

func (s *LocalSource) Name() string { return config.SourceLocal }

func (s *LocalSource) Events(_ context.Context, day time.Time) []model.Event {
	out := make([]model.Event, 0, len(s.events))
	for _, le := range s.events {
		ev, err := localEvent(le, day)
		if err != nil {
			appLog.Error("invalid local event", err, "id", le.ID)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func localEvent(le config.LocalEvent, day time.Time) (model.Event, error) {
	start, err := clockOn(day, le.Start)
	if err != nil {
		return model.Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := clockOn(day, le.End)
	if err != nil {
		return model.Event{}, fmt.Errorf("end: %w", err)
	}
	return model.Event{
		ID:       le.ID,
		Title:    le.Title,
		Start:    start,
		End:      end,
		Category: model.ParseCategory(le.Category),
		Online:   le.Online || le.JoinURL != "",
		JoinURL:  le.JoinURL,
	}, nil
}

// clockOn parses "HH:MM" as a wall-clock time on day.
func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
