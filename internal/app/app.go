// Package app wires the daycard services together. Nothing in the process
// is a singleton: every collaborator is built here and handed to the
// components that use it.
package app

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"daycard/internal/auth"
	"daycard/internal/config"
	"daycard/internal/events"
	"daycard/internal/graph"
	appLog "daycard/internal/log"
	"daycard/internal/model"
	"daycard/internal/notify"
	"daycard/internal/reminder"
	"daycard/internal/tasks"
	"daycard/internal/web"
)

// Options are process-level settings that do not live in the config file.
type Options struct {
	// TokenPath is the token cache file. Empty falls back to
	// cfg.Auth.TokenPath; when both are empty the token lives in memory.
	TokenPath string

	// HTTPClient is used for remote collaborators. Nil means a 15s timeout
	// client.
	HTTPClient *http.Client

	// Authenticator overrides the token accessor's authenticator. Nil means
	// auth.Deferred.
	Authenticator auth.Authenticator
}

type App struct {
	Config   *config.Config
	Location *time.Location

	Auth   *auth.Manager
	Graph  *graph.Client
	Events *events.Store
	Tasks  *tasks.Store

	Gate        *notify.Gate
	Hub         *notify.Hub
	Permissions *notify.StaticPermissions

	Reminders *reminder.Scheduler
	Web       *web.Server
}

// New builds every service from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone; using local", err)
	}

	a := &App{Config: cfg, Location: loc}

	tokenPath := opts.TokenPath
	if tokenPath == "" {
		tokenPath = cfg.Auth.TokenPath
	}
	var cache auth.TokenCache = &auth.MemoryCache{}
	if tokenPath != "" {
		cache = auth.NewFileCache(tokenPath)
	}
	a.Auth = auth.NewManager(cache, opts.Authenticator)
	a.Graph = graph.NewClient(cfg.Graph.BaseURL, a.Auth, opts.HTTPClient)

	matcher := model.CategoryMatcher{
		Meeting: cfg.Calendar.Keywords.Meeting,
		Work:    cfg.Calendar.Keywords.Work,
	}
	a.Events = events.NewStore(a.eventSource(matcher, opts.HTTPClient), loc)

	var remote tasks.Remote
	if cfg.Tasks.Source == config.SourceGraph {
		if a.Auth.IsAuthenticated() {
			remote = tasks.NewGraphRemote(a.Graph, cfg.Tasks.List)
		} else {
			appLog.Warn("not signed in; using local tasks", "source", cfg.Tasks.Source)
		}
	}
	a.Tasks = tasks.NewStore(tasks.FromConfig(cfg.Tasks.Items), remote)

	var (
		perms notify.PermissionStore
		sink  notify.NotificationSink
	)
	switch cfg.Notifications.Mode {
	case config.NotifyLog:
		a.Permissions = notify.NewStaticPermissions(model.ParsePermission(cfg.Notifications.Permission))
		perms, sink = a.Permissions, notify.LogSink{}
	default:
		a.Hub = notify.NewHub()
		perms, sink = a.Hub, a.Hub
	}
	a.Gate = notify.NewGate(perms, sink, cfg.Reminder.DismissAfter)

	a.Reminders = reminder.New(reminder.Config{
		LeadTime:    cfg.Reminder.LeadTime,
		Interval:    cfg.Reminder.Interval,
		MatchWindow: cfg.Reminder.MatchWindow,
		Icon:        cfg.Reminder.Icon,
		Location:    loc,
	}, a.Events, a.Gate)

	deps := web.Deps{
		Events: a.Events,
		Tasks:  a.Tasks,
		Gate:   a.Gate,
	}
	if a.Hub != nil {
		deps.Notifications = a.Hub
	}
	if a.Permissions != nil {
		deps.Permissions = a.Permissions
	}
	a.Web = web.NewServer(cfg, deps)

	return a, nil
}

// eventSource picks the configured calendar source. Remote sources need a
// cached token; without one the app runs on local events.
func (a *App) eventSource(matcher model.CategoryMatcher, httpClient *http.Client) events.Source {
	cfg := a.Config
	local := events.NewLocalSource(cfg.Calendar.Events)

	switch cfg.Calendar.Source {
	case config.SourceICS:
		return events.NewICSSource(cfg.Calendar.ICS, events.NewFetcher(cfg.Calendar.ICS.CacheDir, httpClient), matcher)
	case config.SourceGraph, config.SourceGoogle:
		if !a.Auth.IsAuthenticated() {
			appLog.Warn("not signed in; using local events", "source", cfg.Calendar.Source)
			return local
		}
		if cfg.Calendar.Source == config.SourceGoogle {
			return events.NewGoogleSource(cfg.Calendar.Google, a.Auth, matcher)
		}
		return events.NewGraphSource(a.Graph, matcher)
	default:
		return local
	}
}

// Load fills the stores once without starting anything.
func (a *App) Load(ctx context.Context) {
	a.Events.Refresh(ctx)
	a.Tasks.Sync(ctx)
}

// Run loads the stores, starts the reminder scheduler and the calendar
// refresh job, and serves the card until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Load(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if err := a.Reminders.Schedule(a.Config.Calendar.Refresh, "calendar-refresh", func() {
		a.Events.Refresh(ctx)
	}); err != nil {
		return err
	}

	p := a.Gate.RequestPermission(ctx)
	appLog.Info("notification permission", "permission", string(p), "mode", a.Config.Notifications.Mode)

	g.Go(func() error {
		a.Reminders.Start(ctx)
		<-a.Reminders.Done()
		return nil
	})
	g.Go(func() error {
		return a.Web.Run(ctx)
	})
	if a.Hub != nil {
		g.Go(func() error {
			<-ctx.Done()
			a.Hub.Close()
			return nil
		})
	}

	return g.Wait()
}
