package graph

import (
	"context"
	"net/url"

	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// To Do status and importance values.
const (
	StatusNotStarted = "notStarted"
	StatusInProgress = "inProgress"
	StatusCompleted  = "completed"

	ImportanceLow    = "low"
	ImportanceNormal = "normal"
	ImportanceHigh   = "high"
)

type TodoList struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	WellknownListName string `json:"wellknownListName,omitempty"`
}

type TodoTask struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      string        `json:"status"`
	Importance  string        `json:"importance"`
	DueDateTime *DateTimeZone `json:"dueDateTime,omitempty"`
}

// TaskUpdate is a PATCH body; empty fields are left untouched.
type TaskUpdate struct {
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	Importance string `json:"importance,omitempty"`
}

// Lists returns the user's To Do lists.
func (c *Client) Lists(ctx context.Context) []TodoList {
	var out collection[TodoList]
	if err := c.do(ctx, "GET", "/me/todo/lists", nil, nil, &out); err != nil {
		logFailure("graph todo lists request failed", err)
		return []TodoList{}
	}
	if out.Value == nil {
		return []TodoList{}
	}
	return out.Value
}

// ListID resolves a To Do list by display name. Resolved IDs are cached for
// an hour.
func (c *Client) ListID(ctx context.Context, name string) (string, bool) {
	if id, ok := c.lists.Get(name); ok {
		return id, true
	}
	for _, l := range c.Lists(ctx) {
		if l.DisplayName == name {
			c.lists.Add(name, l.ID)
			return l.ID, true
		}
	}
	appLog.Debug("graph todo list not found", "name", name)
	return "", false
}

// Tasks lists the tasks of a To Do list.
func (c *Client) Tasks(ctx context.Context, listID string) []TodoTask {
	var out collection[TodoTask]
	if err := c.do(ctx, "GET", tasksPath(listID), nil, nil, &out); err != nil {
		logFailure("graph tasks request failed", err, "list", listID)
		return []TodoTask{}
	}
	if out.Value == nil {
		return []TodoTask{}
	}
	return out.Value
}

// CreateTask adds a not-started task. It returns nil on failure.
func (c *Client) CreateTask(ctx context.Context, listID, title string, p model.Priority) *TodoTask {
	body := TaskUpdate{Title: title, Status: StatusNotStarted, Importance: Importance(p)}
	var out TodoTask
	if err := c.do(ctx, "POST", tasksPath(listID), nil, body, &out); err != nil {
		logFailure("graph create task failed", err, "list", listID)
		return nil
	}
	return &out
}

// UpdateTask patches a task and returns the updated resource, or nil on
// failure.
func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, upd TaskUpdate) *TodoTask {
	var out TodoTask
	if err := c.do(ctx, "PATCH", taskPath(listID, taskID), nil, upd, &out); err != nil {
		logFailure("graph update task failed", err, "list", listID, "task", taskID)
		return nil
	}
	return &out
}

// DeleteTask reports whether the task was deleted.
func (c *Client) DeleteTask(ctx context.Context, listID, taskID string) bool {
	if err := c.do(ctx, "DELETE", taskPath(listID, taskID), nil, nil, nil); err != nil {
		logFailure("graph delete task failed", err, "list", listID, "task", taskID)
		return false
	}
	return true
}

func tasksPath(listID string) string {
	return "/me/todo/lists/" + url.PathEscape(listID) + "/tasks"
}

func taskPath(listID, taskID string) string {
	return tasksPath(listID) + "/" + url.PathEscape(taskID)
}

// MapPriority maps To Do importance onto a card priority.
func MapPriority(importance string) model.Priority {
	switch importance {
	case ImportanceHigh:
		return model.PriorityHigh
	case ImportanceLow:
		return model.PriorityLow
	default:
		return model.PriorityMedium
	}
}

// Importance is the inverse of MapPriority.
func Importance(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return ImportanceHigh
	case model.PriorityLow:
		return ImportanceLow
	default:
		return ImportanceNormal
	}
}

// ToTask converts a To Do task for the card.
func ToTask(t TodoTask) model.Task {
	out := model.Task{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Status == StatusCompleted,
		Priority:  MapPriority(t.Importance),
	}
	if t.DueDateTime != nil {
		if due, err := t.DueDateTime.Time(); err == nil {
			out.Due = &due
		}
	}
	return out
}

// StatusFor is the To Do status matching a completion flag.
func StatusFor(completed bool) string {
	if completed {
		return StatusCompleted
	}
	return StatusNotStarted
}

