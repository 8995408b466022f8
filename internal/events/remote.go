package events

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"daycard/internal/auth"
	"daycard/internal/config"
	"daycard/internal/graph"
	appLog "daycard/internal/log"
	"daycard/internal/metrics"
	"daycard/internal/model"
)

// GraphSource reads the signed-in user's Outlook calendar.
type GraphSource struct {
	client  *graph.Client
	matcher model.CategoryMatcher
}

func NewGraphSource(client *graph.Client, matcher model.CategoryMatcher) *GraphSource {
	return &GraphSource{client: client, matcher: matcher}
}

func (s *GraphSource) Name() string { return config.SourceGraph }

func (s *GraphSource) Events(ctx context.Context, day time.Time) []model.Event {
	remote := s.client.TodaysEvents(ctx, day)
	out := make([]model.Event, 0, len(remote))
	for _, re := range remote {
		if re.IsAllDay {
			continue
		}
		ev, err := graph.ToEvent(re, day.Location(), s.matcher)
		if err != nil {
			appLog.Warn("skipping outlook event", "error", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out
}

// GoogleSource reads a Google calendar through the Calendar v3 API. Google
// events carry no categories, so the category is matched on the summary.
type GoogleSource struct {
	cfg     config.GoogleConfig
	tokens  auth.TokenSource
	matcher model.CategoryMatcher
}

func NewGoogleSource(cfg config.GoogleConfig, tokens auth.TokenSource, matcher model.CategoryMatcher) *GoogleSource {
	return &GoogleSource{cfg: cfg, tokens: tokens, matcher: matcher}
}

func (s *GoogleSource) Name() string { return config.SourceGoogle }

func (s *GoogleSource) Events(ctx context.Context, day time.Time) []model.Event {
	items, err := s.list(ctx, day)
	outcome := "ok"
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		outcome = "unauthenticated"
		appLog.Debug("google calendar: not signed in")
	case err != nil:
		outcome = "error"
		appLog.Error("google calendar request failed", err, "calendar", s.cfg.CalendarID)
	}
	metrics.RemoteRequests.WithLabelValues("google", outcome).Inc()
	if err != nil {
		return []model.Event{}
	}

	out := make([]model.Event, 0, len(items))
	for _, item := range items {
		ev, ok := s.toEvent(item, day.Location())
		if ok {
			out = append(out, ev)
		}
	}
	return out
}

func (s *GoogleSource) list(ctx context.Context, day time.Time) ([]*calendar.Event, error) {
	if s.tokens == nil {
		return nil, auth.ErrUnauthenticated
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))),
	}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	from, to := dayBounds(day)
	resp, err := srv.Events.List(s.cfg.CalendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *GoogleSource) toEvent(item *calendar.Event, loc *time.Location) (model.Event, bool) {
	// All-day events only carry Date.
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return model.Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		appLog.Warn("skipping google event", "id", item.Id, "error", err.Error())
		return model.Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		appLog.Warn("skipping google event", "id", item.Id, "error", err.Error())
		return model.Event{}, false
	}

	ev := model.Event{
		ID:       item.Id,
		Title:    item.Summary,
		Start:    start.In(loc),
		End:      end.In(loc),
		Category: s.matcher.Match([]string{item.Summary}),
		JoinURL:  item.HangoutLink,
	}
	if ev.JoinURL == "" && item.ConferenceData != nil {
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				ev.JoinURL = ep.Uri
				break
			}
		}
	}
	ev.Online = ev.JoinURL != ""
	return ev, true
}
