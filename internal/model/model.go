package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent is returned by Event.Validate.
var ErrInvalidEvent = errors.New("invalid event")

// Category classifies a calendar event on the card.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryMeeting  Category = "meeting"
)

// ParseCategory maps a config value onto a Category. Unknown values are
// treated as personal.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryWork, CategoryMeeting:
		return Category(s)
	default:
		return CategoryPersonal
	}
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is assigned to tasks added from the card.
const DefaultPriority = PriorityMedium

// ParsePriority maps a config value onto a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityHigh:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Permission is the platform's record of whether desktop notifications are
// allowed.
type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// ParsePermission accepts both our spelling and the browser's ("default"
// means undetermined).
func ParsePermission(s string) Permission {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	default:
		return PermissionUndetermined
	}
}

// Determined reports whether the user has answered the permission prompt.
func (p Permission) Determined() bool {
	return p == PermissionGranted || p == PermissionDenied
}

// Event is a single calendar entry for the current day.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Category Category  `json:"category"`
	Online   bool      `json:"has_online_link,omitempty"`
	JoinURL  string    `json:"join_url,omitempty"`
}

// Validate checks the identifier and that Start strictly precedes End.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !e.Start.Before(e.End) {
		return fmt.Errorf("%w: %s start %s is not before end %s",
			ErrInvalidEvent, e.ID, e.Start.Format("15:04"), e.End.Format("15:04"))
	}
	return nil
}

// Task is a to-do item. Tasks only live in memory.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	Due       *time.Time `json:"due_date,omitempty"`
	Priority  Priority   `json:"priority"`
}

// Notification is built per reminder firing and discarded afterwards.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// CategoryMatcher maps free-text remote categories onto a Category by
// case-sensitive substring match. Meeting keywords win over work keywords.
type CategoryMatcher struct {
	Meeting []string
	Work    []string
}

// DefaultCategoryMatcher matches the English and Italian keywords.
func DefaultCategoryMatcher() CategoryMatcher {
	return CategoryMatcher{
		Meeting: []string{"Meeting", "Riunione"},
		Work:    []string{"Work", "Lavoro"},
	}
}

func (m CategoryMatcher) Match(categories []string) Category {
	if containsAny(categories, m.Meeting) {
		return CategoryMeeting
	}
	if containsAny(categories, m.Work) {
		return CategoryWork
	}
	return CategoryPersonal
}

func containsAny(values, keywords []string) bool {
	for _, v := range values {
		for _, k := range keywords {
			if k != "" && strings.Contains(v, k) {
				return true
			}
		}
	}
	return false
}
