package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycard/internal/model"
)

type staticEvents []model.Event

func (s staticEvents) ListTodaysEvents() []model.Event { return s }

type recordingGate struct {
	mu      sync.Mutex
	granted bool
	shown   []model.Notification
}

func (g *recordingGate) Display(_ context.Context, n model.Notification) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.granted {
		return false
	}
	g.shown = append(g.shown, n)
	return true
}

func (g *recordingGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.shown)
}

func clock(h, m, s int) time.Time {
	return time.Date(2025, 3, 10, h, m, s, 0, time.UTC)
}

func sampleDay() staticEvents {
	return staticEvents{
		{ID: "1", Title: "Team Meeting", Start: clock(9, 0, 0), End: clock(10, 0, 0), Category: model.CategoryMeeting},
		{ID: "2", Title: "Project Review", Start: clock(14, 30, 0), End: clock(15, 30, 0), Category: model.CategoryWork},
	}
}

func newScheduler(cfg Config, events EventLister, gate Displayer) *Scheduler {
	cfg.Location = time.UTC
	return New(cfg, events, gate)
}

func TestTick_fires_at_lead_time_minute_only(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"08:49", clock(8, 49, 0), 0},
		{"08:50", clock(8, 50, 0), 1},
		{"08:50:59", clock(8, 50, 59), 1},
		{"08:51", clock(8, 51, 0), 0},
		{"14:20", clock(14, 20, 30), 1},
		{"09:00", clock(9, 0, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &recordingGate{granted: true}
			s := newScheduler(Config{}, sampleDay(), gate)
			assert.Equal(t, tt.want, s.Tick(context.Background(), tt.now))
			assert.Equal(t, tt.want, gate.count())
		})
	}
}

func TestTick_team_meeting_notification(t *testing.T) {
	gate := &recordingGate{granted: true}
	s := newScheduler(Config{Icon: "/favicon.ico"}, sampleDay(), gate)

	require.Equal(t, 1, s.Tick(context.Background(), clock(8, 50, 0)))
	n := gate.shown[0]
	assert.Equal(t, "Upcoming Meeting", n.Title)
	assert.Contains(t, n.Body, "Team Meeting")
	assert.Contains(t, n.Body, "10 minutes")
	assert.Equal(t, "event-reminder-1", n.Tag)
	assert.Equal(t, "/favicon.ico", n.Icon)
}

func TestTick_permission_not_granted(t *testing.T) {
	gate := &recordingGate{granted: false}
	s := newScheduler(Config{}, sampleDay(), gate)

	assert.Zero(t, s.Tick(context.Background(), clock(8, 50, 0)))
	assert.Zero(t, gate.count())

	// Not marked: a later grant within the same minute still fires.
	gate.granted = true
	assert.Equal(t, 1, s.Tick(context.Background(), clock(8, 50, 30)))
}

func TestTick_at_most_once_per_day(t *testing.T) {
	gate := &recordingGate{granted: true}
	s := newScheduler(Config{MatchWindow: 90 * time.Second}, sampleDay(), gate)

	ctx := context.Background()
	assert.Equal(t, 1, s.Tick(ctx, clock(8, 49, 0)))
	assert.Zero(t, s.Tick(ctx, clock(8, 50, 0)))
	assert.Zero(t, s.Tick(ctx, clock(8, 51, 0)))
	assert.Zero(t, s.Tick(ctx, clock(8, 52, 0)))
	assert.Equal(t, 1, gate.count())
}

func TestTick_match_window_bounds(t *testing.T) {
	gate := &recordingGate{granted: true}
	s := newScheduler(Config{MatchWindow: 30 * time.Second}, sampleDay(), gate)

	assert.Zero(t, s.Tick(context.Background(), clock(8, 49, 29)))
	assert.Equal(t, 1, s.Tick(context.Background(), clock(8, 49, 31)))
}

func TestTick_rollover_clears_dedup(t *testing.T) {
	gate := &recordingGate{granted: true}
	events := staticEvents{{ID: "1", Title: "Standup", Start: clock(9, 0, 0), End: clock(9, 15, 0)}}
	s := newScheduler(Config{MatchWindow: 2 * time.Minute}, events, gate)
	ctx := context.Background()

	require.Equal(t, 1, s.Tick(ctx, clock(8, 50, 0)))
	assert.Zero(t, s.Tick(ctx, clock(8, 51, 0)))

	// The same event ID shows up again the next day.
	next := staticEvents{{ID: "1", Title: "Standup", Start: clock(9, 0, 0).AddDate(0, 0, 1), End: clock(9, 15, 0).AddDate(0, 0, 1)}}
	s.events = next
	assert.Equal(t, 1, s.Tick(ctx, clock(8, 50, 0).AddDate(0, 0, 1)))
	assert.Equal(t, 2, gate.count())
}

func TestTick_custom_lead_time(t *testing.T) {
	gate := &recordingGate{granted: true}
	s := newScheduler(Config{LeadTime: 5 * time.Minute}, sampleDay(), gate)

	assert.Zero(t, s.Tick(context.Background(), clock(8, 50, 0)))
	require.Equal(t, 1, s.Tick(context.Background(), clock(8, 55, 0)))
	assert.Contains(t, gate.shown[0].Body, "5 minutes")
}

func TestNotification_titles(t *testing.T) {
	ev := model.Event{ID: "2", Title: "Project Review", Category: model.CategoryWork}
	n := Notification(ev, 10*time.Minute, "")
	assert.Equal(t, "Upcoming Event", n.Title)
	assert.Equal(t, "Project Review starts in 10 minutes", n.Body)
	assert.Equal(t, "event-reminder-2", n.Tag)

	assert.Equal(t, "1 minute", humanize(time.Minute))
	assert.Equal(t, "1 hour", humanize(time.Hour))
	assert.Equal(t, "2 hours", humanize(2*time.Hour))
	assert.Equal(t, "90 minutes", humanize(90*time.Minute))
	assert.Equal(t, "30s", humanize(30*time.Second))
}

func TestStart_checks_immediately_and_stops_on_cancel(t *testing.T) {
	gate := &recordingGate{granted: true}
	s := newScheduler(Config{Interval: time.Hour}, sampleDay(), gate)
	s.now = func() time.Time { return clock(8, 50, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Equal(t, 1, gate.count())

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	s.Stop()
}

func TestSchedule_rejects_bad_spec(t *testing.T) {
	s := newScheduler(Config{}, staticEvents{}, &recordingGate{})
	assert.Error(t, s.Schedule("not a cron", "refresh", func() {}))
	assert.NoError(t, s.Schedule("*/15 * * * *", "refresh", func() {}))
	s.Stop()
}
