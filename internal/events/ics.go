package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"daycard/internal/config"
	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// ICSSource reads an iCalendar feed, from a URL through the caching Fetcher
// or from a local file. All-day and recurring expansion are not supported:
// all-day events are skipped and only the master instance of a recurring
// event is considered.
type ICSSource struct {
	cfg     config.ICSConfig
	fetcher *Fetcher
	matcher model.CategoryMatcher
}

func NewICSSource(cfg config.ICSConfig, fetcher *Fetcher, matcher model.CategoryMatcher) *ICSSource {
	if fetcher == nil {
		fetcher = NewFetcher(cfg.CacheDir, nil)
	}
	return &ICSSource{cfg: cfg, fetcher: fetcher, matcher: matcher}
}

func (s *ICSSource) Name() string { return config.SourceICS }

func (s *ICSSource) Events(ctx context.Context, day time.Time) []model.Event {
	body, err := s.body(ctx)
	if err != nil {
		appLog.Error("ics feed unavailable", err)
		return []model.Event{}
	}
	evs, err := ParseICS(body, day, s.matcher)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return []model.Event{}
	}
	return evs
}

func (s *ICSSource) body(ctx context.Context) ([]byte, error) {
	switch {
	case s.cfg.URL != "":
		body, _, err := s.fetcher.Fetch(ctx, s.cfg.URL)
		return body, err
	case s.cfg.Path != "":
		return os.ReadFile(s.cfg.Path)
	default:
		return nil, errors.New("ics source has neither url nor path")
	}
}

// ParseICS returns the timed VEVENTs of payload that start on day, in day's
// location. Malformed VEVENTs are logged and skipped.
func ParseICS(payload []byte, day time.Time, matcher model.CategoryMatcher) ([]model.Event, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	from, to := dayBounds(day)
	out := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, allDay, err := parseVEvent(ve, matcher)
		if err != nil {
			appLog.Warn("skipping vevent", "error", err.Error())
			continue
		}
		if allDay {
			continue
		}
		if ev.Start.Before(from) || !ev.Start.Before(to) {
			continue
		}
		ev.Start, ev.End = ev.Start.In(day.Location()), ev.End.In(day.Location())
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, matcher model.CategoryMatcher) (model.Event, bool, error) {
	var ev model.Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, false, errors.New("missing UID")
	}
	ev.ID = uid.Value

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, false, fmt.Errorf("%s: missing DTSTART", ev.ID)
	}
	if isDateValue(dtStart) {
		return ev, true, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, false, fmt.Errorf("%s: DTSTART: %w", ev.ID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return ev, false, fmt.Errorf("%s: DTEND: %w", ev.ID, err)
	}
	ev.Start, ev.End = start, end

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}

	var categories []string
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}
	ev.Category = matcher.Match(categories)

	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil && p.Value != "" {
		ev.JoinURL = p.Value
		ev.Online = true
	}
	return ev, false, nil
}

// isDateValue reports whether a DTSTART is a DATE (all-day) value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
