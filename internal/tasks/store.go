// Package tasks is the in-memory to-do list behind the card.
package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"daycard/internal/config"
	appLog "daycard/internal/log"
	"daycard/internal/model"
)

// Remote mirrors task changes to a remote list. Every call is best effort:
// failures are reported as zero values and never block the local change.
type Remote interface {
	List(ctx context.Context) []model.Task
	Create(ctx context.Context, title string, p model.Priority) (model.Task, bool)
	SetCompleted(ctx context.Context, id string, completed bool) bool
	Delete(ctx context.Context, id string) bool
}

// Store holds tasks in process memory. The newest task comes first.
type Store struct {
	remote Remote

	mu    sync.Mutex
	tasks []model.Task
}

// NewStore seeds the store. A nil remote keeps tasks local only.
func NewStore(seed []model.Task, remote Remote) *Store {
	tasks := slices.Clone(seed)
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &Store{remote: remote, tasks: tasks}
}

// FromConfig converts configured items into tasks. Items without an ID get
// a fresh one; unparseable due dates are dropped.
func FromConfig(items []config.LocalTask) []model.Task {
	out := make([]model.Task, 0, len(items))
	for _, it := range items {
		t := model.Task{
			ID:        it.ID,
			Title:     it.Title,
			Completed: it.Completed,
			Priority:  model.ParsePriority(it.Priority),
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if it.Due != "" {
			if due, err := time.Parse(time.DateOnly, it.Due); err == nil {
				t.Due = &due
			} else {
				appLog.Warn("ignoring task due date", "id", t.ID, "due", it.Due)
			}
		}
		out = append(out, t)
	}
	return out
}

// Sync replaces the local list with the remote one. An empty remote result
// leaves the local list untouched, since it cannot be told apart from a
// failed request.
func (s *Store) Sync(ctx context.Context) int {
	if s.remote == nil {
		return 0
	}
	remote := s.remote.List(ctx)
	if len(remote) == 0 {
		return 0
	}
	s.mu.Lock()
	s.tasks = remote
	s.mu.Unlock()
	appLog.Info("tasks synced from remote", "count", len(remote))
	return len(remote)
}

// List returns a copy of the tasks.
func (s *Store) List() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Remaining counts incomplete tasks.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

// Add prepends a task with the trimmed title. A blank title is ignored and
// reported with ok=false.
func (s *Store) Add(ctx context.Context, title string) (model.Task, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, false
	}

	t := model.Task{
		ID:       uuid.NewString(),
		Title:    title,
		Priority: model.DefaultPriority,
	}
	if s.remote != nil {
		if created, ok := s.remote.Create(ctx, title, t.Priority); ok && created.ID != "" {
			t.ID = created.ID
		}
	}

	s.mu.Lock()
	s.tasks = append([]model.Task{t}, s.tasks...)
	s.mu.Unlock()
	return t, true
}

// Toggle flips the completion flag of id. Unknown IDs are ignored.
func (s *Store) Toggle(ctx context.Context, id string) (model.Task, bool) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, false
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	t := s.tasks[i]
	s.mu.Unlock()

	if s.remote != nil {
		s.remote.SetCompleted(ctx, id, t.Completed)
	}
	return t, true
}

// Delete removes id. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	s.mu.Unlock()

	if s.remote != nil {
		s.remote.Delete(ctx, id)
	}
	return true
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}
