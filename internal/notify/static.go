package notify

import (
	"context"
	"sync"

	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// StaticPermissions is a fixed permission for headless runs. An undetermined
// state stays undetermined: there is nobody to ask.
type StaticPermissions struct {
	mu sync.RWMutex
	p  model.Permission
}

func NewStaticPermissions(p model.Permission) *StaticPermissions {
	return &StaticPermissions{p: p}
}

func (s *StaticPermissions) Permission() model.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

func (s *StaticPermissions) Request(context.Context) model.Permission {
	return s.Permission()
}

// Set changes the permission; the card's permission endpoint uses it in
// headless mode.
func (s *StaticPermissions) Set(p model.Permission) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

func (LogSink) Supported() bool { return true }

func (LogSink) Show(_ context.Context, n model.Notification, opts DisplayOptions) error {
	appLog.Info("notification",
		"title", n.Title,
		"body", n.Body,
		"tag", n.Tag,
		"dismiss_after", opts.DismissAfter.String(),
	)
	return nil
}
