package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycard/internal/auth"
	appLog "daycard/internal/log"
	"daycard/internal/model"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", auth.ErrUnauthenticated
	}
	return string(s), nil
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, staticToken("tok"), srv.Client())
}

func writeValue(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"value": v})
}

func TestEvents_sends_bearer_and_filter(t *testing.T) {
	var gotAuth, gotFilter string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFilter = r.URL.Query().Get("$filter")
		assert.Equal(t, "/me/events", r.URL.Path)
		writeValue(w, []OutlookEvent{{
			ID:              "AAMk1",
			Subject:         "Team Meeting",
			Start:           DateTimeZone{DateTime: "2025-03-10T09:00:00.0000000", TimeZone: "UTC"},
			End:             DateTimeZone{DateTime: "2025-03-10T10:00:00.0000000", TimeZone: "UTC"},
			IsOnlineMeeting: true,
			OnlineMeeting:   &OnlineMeeting{JoinURL: "https://teams.example/join"},
			Categories:      []string{"Riunione"},
		}})
	})

	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	events := c.TodaysEvents(context.Background(), day)
	require.Len(t, events, 1)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "start/dateTime ge '2025-03-10T00:00:00Z' and end/dateTime le '2025-03-11T00:00:00Z'", gotFilter)

	ev, err := ToEvent(events[0], time.UTC, model.DefaultCategoryMatcher())
	require.NoError(t, err)
	assert.Equal(t, "Team Meeting", ev.Title)
	assert.Equal(t, model.CategoryMeeting, ev.Category)
	assert.True(t, ev.Online)
	assert.Equal(t, "https://teams.example/join", ev.JoinURL)
	assert.Equal(t, 9, ev.Start.Hour())
	assert.NoError(t, ev.Validate())
}

func TestEvents_server_error_yields_empty_list(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf, appLog.LevelDebug)
	t.Cleanup(func() { appLog.SetOutput(&bytes.Buffer{}, appLog.LevelInfo) })

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	events := c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Contains(t, buf.String(), "graph events request failed")
	assert.Contains(t, buf.String(), "500")
}

func TestEvents_without_token_does_not_call_server(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""), srv.Client())
	assert.Empty(t, c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour)))
	assert.Empty(t, c.Lists(context.Background()))
	assert.Nil(t, c.CreateTask(context.Background(), "l", "x", model.PriorityMedium))
	assert.False(t, c.DeleteTask(context.Background(), "l", "t"))
	assert.Zero(t, calls.Load())
}

func TestListID_resolves_by_name_and_caches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeValue(w, []TodoList{
			{ID: "L1", DisplayName: "Tasks", WellknownListName: "defaultList"},
			{ID: "L2", DisplayName: "Groceries"},
		})
	})

	id, ok := c.ListID(context.Background(), "Groceries")
	require.True(t, ok)
	assert.Equal(t, "L2", id)

	id, ok = c.ListID(context.Background(), "Groceries")
	require.True(t, ok)
	assert.Equal(t, "L2", id)
	assert.Equal(t, int32(1), calls.Load())

	_, ok = c.ListID(context.Background(), "Missing")
	assert.False(t, ok)
}

func TestTaskCRUD(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/me/todo/lists/L1/tasks":
			writeValue(w, []TodoTask{
				{ID: "T1", Title: "Write report", Status: StatusCompleted, Importance: ImportanceHigh},
				{ID: "T2", Title: "Call Bob", Status: StatusInProgress, Importance: "weird"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/me/todo/lists/L1/tasks":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(TodoTask{ID: "T3", Title: body["title"], Status: body["status"], Importance: body["importance"]})
		case r.Method == http.MethodPatch && r.URL.Path == "/me/todo/lists/L1/tasks/T2":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(TodoTask{ID: "T2", Title: "Call Bob", Status: body["status"]})
		case r.Method == http.MethodDelete && r.URL.Path == "/me/todo/lists/L1/tasks/T2":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	tasks := c.Tasks(ctx, "L1")
	require.Len(t, tasks, 2)
	first, second := ToTask(tasks[0]), ToTask(tasks[1])
	assert.True(t, first.Completed)
	assert.Equal(t, model.PriorityHigh, first.Priority)
	assert.False(t, second.Completed)
	assert.Equal(t, model.PriorityMedium, second.Priority)

	created := c.CreateTask(ctx, "L1", "New thing", model.PriorityLow)
	require.NotNil(t, created)
	assert.Equal(t, "T3", created.ID)
	assert.Equal(t, StatusNotStarted, created.Status)
	assert.Equal(t, ImportanceLow, created.Importance)

	updated := c.UpdateTask(ctx, "L1", "T2", TaskUpdate{Status: StatusFor(true)})
	require.NotNil(t, updated)
	assert.Equal(t, StatusCompleted, updated.Status)

	assert.True(t, c.DeleteTask(ctx, "L1", "T2"))
	assert.False(t, c.DeleteTask(ctx, "L1", "nope"))
	assert.Nil(t, c.UpdateTask(ctx, "L1", "nope", TaskUpdate{Title: "x"}))
}

func TestMapPriority(t *testing.T) {
	assert.Equal(t, model.PriorityHigh, MapPriority("high"))
	assert.Equal(t, model.PriorityMedium, MapPriority("normal"))
	assert.Equal(t, model.PriorityLow, MapPriority("low"))
	assert.Equal(t, model.PriorityMedium, MapPriority(""))

	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh} {
		assert.Equal(t, p, MapPriority(Importance(p)))
	}
}

func TestDateTimeZone_Time(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	got, err := DateTimeZone{DateTime: "2025-03-10T09:00:00.0000000", TimeZone: "Europe/Rome"}.Time()
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, rome)))

	got, err = DateTimeZone{DateTime: "2025-03-10T09:00:00", TimeZone: "Not A Zone"}.Time()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())

	_, err = DateTimeZone{}.Time()
	assert.Error(t, err)
}

func TestToTask_due_date(t *testing.T) {
	task := ToTask(TodoTask{
		ID:          "T1",
		Title:       "Taxes",
		Status:      StatusNotStarted,
		DueDateTime: &DateTimeZone{DateTime: "2025-04-15T00:00:00.0000000", TimeZone: "UTC"},
	})
	require.NotNil(t, task.Due)
	assert.Equal(t, time.April, task.Due.Month())
	assert.Equal(t, 15, task.Due.Day())
}
