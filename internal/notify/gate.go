// Package notify is the Notification Gate: a thin boundary over whatever can
// show desktop notifications to the user.
package notify

import (
	"context"
	"time"

	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// PermissionStore reports and requests the platform notification
// permission.
type PermissionStore interface {
	Permission() model.Permission
	// Request prompts the user. Platforms that answer asynchronously return
	// the state as it is right after the prompt was sent.
	Request(ctx context.Context) model.Permission
}

// DisplayOptions control how a sink presents a notification.
type DisplayOptions struct {
	// DismissAfter closes the notification automatically. Zero leaves it to
	// the platform.
	DismissAfter time.Duration
}

// NotificationSink shows notifications.
type NotificationSink interface {
	// Supported reports whether notifications can be shown at all right now.
	Supported() bool
	Show(ctx context.Context, n model.Notification, opts DisplayOptions) error
}

// Gate combines a permission store and a sink. It never returns errors to
// callers; unsupported platforms and missing permission make Display a
// no-op.
type Gate struct {
	perms        PermissionStore
	sink         NotificationSink
	dismissAfter time.Duration
}

func NewGate(perms PermissionStore, sink NotificationSink, dismissAfter time.Duration) *Gate {
	return &Gate{perms: perms, sink: sink, dismissAfter: dismissAfter}
}

func (g *Gate) Permission() model.Permission {
	return g.perms.Permission()
}

// RequestPermission asks for permission unless the user has already
// answered. Calling it repeatedly never re-prompts a determined state.
func (g *Gate) RequestPermission(ctx context.Context) model.Permission {
	if p := g.perms.Permission(); p.Determined() {
		return p
	}
	if !g.sink.Supported() {
		appLog.Debug("notification permission requested but notifications are unsupported")
		return g.perms.Permission()
	}
	return g.perms.Request(ctx)
}

// Display shows n when notifications are supported and granted, and
// reports whether it was shown.
func (g *Gate) Display(ctx context.Context, n model.Notification) bool {
	if !g.sink.Supported() {
		appLog.Debug("notification dropped: unsupported", "tag", n.Tag)
		return false
	}
	if p := g.perms.Permission(); p != model.PermissionGranted {
		appLog.Debug("notification dropped: permission not granted", "tag", n.Tag, "permission", string(p))
		return false
	}
	if err := g.sink.Show(ctx, n, DisplayOptions{DismissAfter: g.dismissAfter}); err != nil {
		appLog.Warn("notification display failed", "tag", n.Tag, "error", err.Error())
		return false
	}
	return true
}
