package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// Message types on the card websocket.
const (
	// client -> server
	MsgHello      = "hello"
	MsgPermission = "permission"

	// server -> client
	MsgWelcome           = "welcome"
	MsgRequestPermission = "request_permission"
	MsgNotification      = "notification"
)

const writeTimeout = 5 * time.Second

var errNoRecipients = errors.New("no card with notification permission is connected")

// Message is the JSON envelope exchanged with open cards. Permission uses
// the browser's spelling: "default", "granted" or "denied".
type Message struct {
	Type           string              `json:"type"`
	Permission     string              `json:"permission,omitempty"`
	Notification   *model.Notification `json:"notification,omitempty"`
	DismissAfterMS int64               `json:"dismiss_after_ms,omitempty"`
}

// Hub is the browser notification platform. Every open card connects to it,
// reports its Notification.permission and receives permission prompts and
// notifications. It implements both PermissionStore and NotificationSink.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	perm model.Permission // guarded by Hub.mu

	writeMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Debug("websocket upgrade failed", "error", err.Error())
		return
	}
	c, err := h.accept(conn)
	if err != nil {
		appLog.Debug("websocket handshake failed", "error", err.Error())
		_ = conn.Close()
		return
	}
	h.readLoop(c)
}

func (h *Hub) accept(conn *websocket.Conn) (*client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != MsgHello {
		return nil, fmt.Errorf("expected hello, got %q", hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &client{conn: conn, perm: model.ParsePermission(hello.Permission)}
	if err := c.write(Message{Type: MsgWelcome}); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	appLog.Info("card connected", "permission", string(c.perm), "clients", n)
	return c, nil
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.mu.Unlock()
		_ = c.conn.Close()
		appLog.Info("card disconnected", "clients", n)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if strings.TrimSpace(msg.Type) != MsgPermission {
			continue
		}
		p := model.ParsePermission(msg.Permission)
		h.mu.Lock()
		c.perm = p
		h.mu.Unlock()
		appLog.Info("card notification permission", "permission", string(p))
	}
}

// Clients is the number of connected cards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Permission folds the connected cards' states: granted if any card has
// granted, undetermined if any card has not answered, denied otherwise. With
// no card connected it is undetermined.
func (h *Hub) Permission() model.Permission {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := model.PermissionUndetermined
	sawDenied, sawUndetermined := false, false
	for c := range h.clients {
		switch c.perm {
		case model.PermissionGranted:
			return model.PermissionGranted
		case model.PermissionDenied:
			sawDenied = true
		default:
			sawUndetermined = true
		}
	}
	if sawDenied && !sawUndetermined {
		out = model.PermissionDenied
	}
	return out
}

// Request asks every undetermined card to prompt the user. Answers arrive
// asynchronously as permission messages.
func (h *Hub) Request(context.Context) model.Permission {
	for _, c := range h.snapshot(model.PermissionUndetermined) {
		if err := c.write(Message{Type: MsgRequestPermission}); err != nil {
			appLog.Debug("permission request not delivered", "error", err.Error())
		}
	}
	return h.Permission()
}

func (h *Hub) Supported() bool {
	return h.Clients() > 0
}

// Show sends n to every card that has granted permission.
func (h *Hub) Show(_ context.Context, n model.Notification, opts DisplayOptions) error {
	msg := Message{
		Type:           MsgNotification,
		Notification:   &n,
		DismissAfterMS: opts.DismissAfter.Milliseconds(),
	}
	delivered := 0
	for _, c := range h.snapshot(model.PermissionGranted) {
		if err := c.write(msg); err != nil {
			appLog.Debug("notification not delivered", "error", err.Error())
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errNoRecipients
	}
	return nil
}

// Close disconnects every card.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) snapshot(p model.Permission) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.perm == p {
			out = append(out, c)
		}
	}
	return out
}

func (c *client) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}
