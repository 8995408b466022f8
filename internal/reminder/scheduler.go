// Package reminder fires desktop notifications shortly before events start.
//
// A tick takes the current wall-clock time and, for every tracked event,
// compares it with target = start - lead time. With no match window the
// comparison is at minute granularity: the event fires on the tick whose
// minute equals the target minute. With a window, it fires on any tick
// within the window of the exact target. Each (event, day) fires at most
// once; the set of fired events is cleared when the day rolls over.
//
// Missed ticks are not caught up.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "daycard/internal/log"
	"daycard/internal/metrics"
	"daycard/internal/model"
)

// EventLister supplies the tracked events.
type EventLister interface {
	ListTodaysEvents() []model.Event
}

// Displayer is the notification gate.
type Displayer interface {
	Display(ctx context.Context, n model.Notification) bool
}

type Config struct {
	LeadTime    time.Duration
	Interval    time.Duration
	MatchWindow time.Duration
	Icon        string
	// Location defines the calendar day used for de-duplication.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	out := c
	if out.LeadTime <= 0 {
		out.LeadTime = 10 * time.Minute
	}
	if out.Interval <= 0 {
		out.Interval = time.Minute
	}
	if out.MatchWindow < 0 {
		out.MatchWindow = 0
	}
	if out.Location == nil {
		out.Location = time.Local
	}
	return out
}

// Scheduler runs the reminder tick, and any extra jobs registered with
// Schedule, on one cron instance.
type Scheduler struct {
	cfg    Config
	events EventLister
	gate   Displayer
	now    func() time.Time
	cron   *cron.Cron

	mu       sync.Mutex
	day      string
	notified map[string]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
}

func New(cfg Config, events EventLister, gate Displayer) *Scheduler {
	cfg = cfg.withDefaults()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cfg:    cfg,
		events: events,
		gate:   gate,
		now:    time.Now,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		notified: make(map[string]struct{}),
		stopped:  make(chan struct{}),
	}
}

// Schedule registers fn under a standard five-field cron expression.
func (s *Scheduler) Schedule(spec, name string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Start checks once immediately, then on every interval until Stop is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.cron.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(func() { s.Tick(ctx, s.now()) }))

		s.Tick(ctx, s.now())
		s.cron.Start()
		appLog.Info("reminder scheduler started",
			"interval", s.cfg.Interval.String(),
			"lead_time", s.cfg.LeadTime.String(),
			"match_window", s.cfg.MatchWindow.String(),
		)

		go func() {
			select {
			case <-ctx.Done():
				s.Stop()
			case <-s.stopped:
			}
		}()
	})
}

// Stop cancels the timer and waits for a running tick. Safe to call more
// than once, and before Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stopped)
		appLog.Info("reminder scheduler stopped")
	})
}

// Done is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Tick evaluates every tracked event against now and returns the number of
// notifications shown.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	now = now.In(s.cfg.Location)
	day := now.Format(time.DateOnly)

	s.mu.Lock()
	if s.day != day {
		if s.day != "" {
			appLog.Debug("reminder day rollover", "from", s.day, "to", day)
		}
		s.day = day
		clear(s.notified)
	}
	s.mu.Unlock()

	fired := 0
	for _, ev := range s.events.ListTodaysEvents() {
		if !s.due(ev, now) {
			continue
		}
		key := ev.ID + "@" + day
		if s.isNotified(key) {
			metrics.RemindersSkipped.WithLabelValues("duplicate").Inc()
			continue
		}
		if !s.gate.Display(ctx, Notification(ev, s.cfg.LeadTime, s.cfg.Icon)) {
			metrics.RemindersSkipped.WithLabelValues("not_displayed").Inc()
			continue
		}
		s.markNotified(key)
		metrics.RemindersFired.Inc()
		appLog.Info("reminder fired", "event", ev.ID, "title", ev.Title)
		fired++
	}
	return fired
}

func (s *Scheduler) due(ev model.Event, now time.Time) bool {
	target := ev.Start.Add(-s.cfg.LeadTime).In(s.cfg.Location)
	if s.cfg.MatchWindow == 0 {
		return minuteOf(now).Equal(minuteOf(target))
	}
	d := now.Sub(target)
	if d < 0 {
		d = -d
	}
	return d <= s.cfg.MatchWindow
}

func (s *Scheduler) isNotified(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notified[key]
	return ok
}

func (s *Scheduler) markNotified(key string) {
	s.mu.Lock()
	s.notified[key] = struct{}{}
	s.mu.Unlock()
}

func minuteOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// Notification builds the reminder for ev.
func Notification(ev model.Event, lead time.Duration, icon string) model.Notification {
	title := "Upcoming Event"
	if ev.Category == model.CategoryMeeting {
		title = "Upcoming Meeting"
	}
	return model.Notification{
		Title: title,
		Body:  fmt.Sprintf("%s starts in %s", ev.Title, humanize(lead)),
		Icon:  icon,
		Tag:   "event-reminder-" + ev.ID,
	}
}

func humanize(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	switch m := int(d / time.Minute); {
	case m == 1:
		return "1 minute"
	case m%60 == 0 && m >= 120:
		return fmt.Sprintf("%d hours", m/60)
	case m == 60:
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
