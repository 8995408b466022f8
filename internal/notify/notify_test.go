package notify

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycard/internal/model"
)

type fakePerms struct {
	p        model.Permission
	answer   model.Permission
	requests int
}

func (f *fakePerms) Permission() model.Permission { return f.p }

func (f *fakePerms) Request(context.Context) model.Permission {
	f.requests++
	if f.answer != "" {
		f.p = f.answer
	}
	return f.p
}

type fakeSink struct {
	unsupported bool
	err         error
	shown       []model.Notification
	opts        []DisplayOptions
}

func (f *fakeSink) Supported() bool { return !f.unsupported }

func (f *fakeSink) Show(_ context.Context, n model.Notification, opts DisplayOptions) error {
	if f.err != nil {
		return f.err
	}
	f.shown = append(f.shown, n)
	f.opts = append(f.opts, opts)
	return nil
}

func TestGate_Display(t *testing.T) {
	n := model.Notification{Title: "Upcoming Meeting", Body: "Team Meeting starts in 10 minutes", Tag: "event-reminder-1"}

	tests := []struct {
		name  string
		perm  model.Permission
		sink  *fakeSink
		shown bool
	}{
		{"granted", model.PermissionGranted, &fakeSink{}, true},
		{"denied", model.PermissionDenied, &fakeSink{}, false},
		{"undetermined", model.PermissionUndetermined, &fakeSink{}, false},
		{"unsupported", model.PermissionGranted, &fakeSink{unsupported: true}, false},
		{"sink failure", model.PermissionGranted, &fakeSink{err: errors.New("closed")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(&fakePerms{p: tt.perm}, tt.sink, 5*time.Second)
			assert.Equal(t, tt.shown, g.Display(context.Background(), n))
			if tt.shown {
				require.Len(t, tt.sink.shown, 1)
				assert.Equal(t, n, tt.sink.shown[0])
				assert.Equal(t, 5*time.Second, tt.sink.opts[0].DismissAfter)
			} else {
				assert.Empty(t, tt.sink.shown)
			}
		})
	}
}

func TestGate_RequestPermission_is_idempotent(t *testing.T) {
	perms := &fakePerms{p: model.PermissionUndetermined, answer: model.PermissionGranted}
	g := NewGate(perms, &fakeSink{}, 0)

	assert.Equal(t, model.PermissionGranted, g.RequestPermission(context.Background()))
	assert.Equal(t, model.PermissionGranted, g.RequestPermission(context.Background()))
	assert.Equal(t, 1, perms.requests)

	denied := &fakePerms{p: model.PermissionDenied}
	g = NewGate(denied, &fakeSink{}, 0)
	assert.Equal(t, model.PermissionDenied, g.RequestPermission(context.Background()))
	assert.Zero(t, denied.requests)
}

func TestGate_RequestPermission_unsupported(t *testing.T) {
	perms := &fakePerms{p: model.PermissionUndetermined, answer: model.PermissionGranted}
	g := NewGate(perms, &fakeSink{unsupported: true}, 0)
	assert.Equal(t, model.PermissionUndetermined, g.RequestPermission(context.Background()))
	assert.Zero(t, perms.requests)
}

func TestStaticPermissions_with_LogSink(t *testing.T) {
	perms := NewStaticPermissions(model.PermissionUndetermined)
	g := NewGate(perms, LogSink{}, time.Second)

	assert.Equal(t, model.PermissionUndetermined, g.RequestPermission(context.Background()))
	assert.False(t, g.Display(context.Background(), model.Notification{Title: "x"}))

	perms.Set(model.PermissionGranted)
	assert.True(t, g.Display(context.Background(), model.Notification{Title: "x"}))
}

func dialHub(t *testing.T, h *Hub, permission string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(Message{Type: MsgHello, Permission: permission}))
	var welcome Message
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, MsgWelcome, welcome.Type)
	return conn
}

func TestHub_without_clients(t *testing.T) {
	h := NewHub()
	assert.False(t, h.Supported())
	assert.Equal(t, model.PermissionUndetermined, h.Permission())
	assert.Error(t, h.Show(context.Background(), model.Notification{}, DisplayOptions{}))
}

func TestHub_permission_flow_and_notification(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h, "default")

	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.Supported())
	assert.Equal(t, model.PermissionUndetermined, h.Permission())

	g := NewGate(h, h, 5*time.Second)
	assert.Equal(t, model.PermissionUndetermined, g.RequestPermission(context.Background()))

	var prompt Message
	require.NoError(t, conn.ReadJSON(&prompt))
	assert.Equal(t, MsgRequestPermission, prompt.Type)

	assert.False(t, g.Display(context.Background(), model.Notification{Title: "early"}))

	require.NoError(t, conn.WriteJSON(Message{Type: MsgPermission, Permission: "granted"}))
	require.Eventually(t, func() bool { return h.Permission() == model.PermissionGranted }, 2*time.Second, 10*time.Millisecond)

	n := model.Notification{Title: "Upcoming Event", Body: "Project Review starts in 10 minutes", Icon: "/favicon.ico", Tag: "event-reminder-2"}
	require.True(t, g.Display(context.Background(), n))

	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, MsgNotification, got.Type)
	require.NotNil(t, got.Notification)
	assert.Equal(t, n, *got.Notification)
	assert.Equal(t, int64(5000), got.DismissAfterMS)
}

func TestHub_denied_card(t *testing.T) {
	h := NewHub()
	dialHub(t, h, "denied")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, model.PermissionDenied, h.Permission())
	g := NewGate(h, h, 0)
	assert.Equal(t, model.PermissionDenied, g.RequestPermission(context.Background()))
	assert.False(t, g.Display(context.Background(), model.Notification{Title: "x"}))
}

func TestHub_disconnect_removes_client(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h, "granted")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.Supported())
}
