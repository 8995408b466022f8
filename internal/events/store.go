// Package events holds the current day's calendar events and the sources
// that supply them.
package events

import (
	"context"
	"slices"
	"sync"
	"time"

	appLog "daycard/internal/log"
	"daycard/internal/metrics"
	"daycard/internal/model"
)

// Source supplies the events of one calendar day. Implementations swallow
// their own failures and return an empty slice.
type Source interface {
	Name() string
	Events(ctx context.Context, day time.Time) []model.Event
}

// Store is the Event Store: today's events, ordered by start.
type Store struct {
	source Source
	loc    *time.Location
	now    func() time.Time

	mu     sync.RWMutex
	day    time.Time
	events []model.Event
}

func NewStore(source Source, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		source: source,
		loc:    loc,
		now:    time.Now,
		events: []model.Event{},
	}
}

// Refresh reloads today's events from the source. Invalid events are
// dropped. It returns the number of events kept.
func (s *Store) Refresh(ctx context.Context) int {
	now := s.now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	loaded := s.source.Events(ctx, day)
	kept := make([]model.Event, 0, len(loaded))
	for _, ev := range loaded {
		if err := ev.Validate(); err != nil {
			appLog.Warn("dropping invalid event", "source", s.source.Name(), "error", err.Error())
			continue
		}
		kept = append(kept, ev)
	}
	slices.SortStableFunc(kept, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})

	s.mu.Lock()
	s.day = day
	s.events = kept
	s.mu.Unlock()

	metrics.EventsLoaded.Set(float64(len(kept)))
	appLog.Info("events refreshed", "source", s.source.Name(), "day", day.Format(time.DateOnly), "count", len(kept))
	return len(kept)
}

// ListTodaysEvents returns a copy of the loaded events.
func (s *Store) ListTodaysEvents() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Day is the calendar day of the last refresh.
func (s *Store) Day() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

func (s *Store) SourceName() string {
	return s.source.Name()
}

// dayBounds returns [start of day, start of next day) in day's location.
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
