package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar sources.
const (
	SourceLocal  = "local"
	SourceICS    = "ics"
	SourceGraph  = "graph"
	SourceGoogle = "google"
)

// Notification delivery modes.
const (
	NotifyBrowser = "browser"
	NotifyLog     = "log"
)

// Auth modes and providers.
const (
	AuthNone  = "none"
	AuthOAuth = "oauth"

	ProviderMicrosoft = "microsoft"
	ProviderGoogle    = "google"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the card and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LocalEvent is an event supplied directly in config. Start and End are
// "HH:MM" wall-clock times on the current day.
type LocalEvent struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Start    string `yaml:"start" json:"start"`
	End      string `yaml:"end" json:"end"`
	Category string `yaml:"category" json:"category"`
	Online   bool   `yaml:"online,omitempty" json:"online,omitempty"`
	JoinURL  string `yaml:"join_url,omitempty" json:"join_url,omitempty"`
}

// LocalTask seeds the task list.
type LocalTask struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	Completed bool   `yaml:"completed" json:"completed"`
	Priority  string `yaml:"priority" json:"priority"`
	// Due is an optional date, "2006-01-02".
	Due string `yaml:"due,omitempty" json:"due,omitempty"`
}

// ICSConfig describes an ICS feed. URL takes precedence over Path.
type ICSConfig struct {
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	CacheDir string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
}

// GoogleConfig selects a Google calendar.
type GoogleConfig struct {
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Endpoint overrides the API base URL; used against test servers.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// CategoryKeywords lists the substrings that map remote categories onto the
// card's categories. Matching is case-sensitive.
type CategoryKeywords struct {
	Meeting []string `yaml:"meeting" json:"meeting"`
	Work    []string `yaml:"work" json:"work"`
}

// CalendarConfig configures the Event Store.
type CalendarConfig struct {
	// Source is one of local, ics, graph, google.
	Source string `yaml:"source" json:"source"`

	// Refresh is a cron expression (e.g. "*/15 * * * *") for reloading
	// today's events.
	Refresh string `yaml:"refresh" json:"refresh"`

	ICS      ICSConfig        `yaml:"ics" json:"ics"`
	Google   GoogleConfig     `yaml:"google" json:"google"`
	Keywords CategoryKeywords `yaml:"category_keywords" json:"category_keywords"`

	// Events is the local event list, used when Source is local or when no
	// remote collaborator is reachable.
	Events []LocalEvent `yaml:"events" json:"events"`
}

// TasksConfig configures the Task Store.
type TasksConfig struct {
	// Source is local or graph.
	Source string `yaml:"source" json:"source"`
	// List is the display name of the remote To Do list.
	List  string      `yaml:"list" json:"list"`
	Items []LocalTask `yaml:"items" json:"items"`
}

// ReminderConfig configures the reminder scheduler.
type ReminderConfig struct {
	LeadTime time.Duration `yaml:"lead_time" json:"lead_time"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	// MatchWindow widens the minute-granularity match to |now-target| <= window.
	// Zero means exact minute match.
	MatchWindow  time.Duration `yaml:"match_window" json:"match_window"`
	Icon         string        `yaml:"icon" json:"icon"`
	DismissAfter time.Duration `yaml:"dismiss_after" json:"dismiss_after"`
}

// NotificationsConfig selects how notifications reach the user.
type NotificationsConfig struct {
	// Mode is browser (websocket to open cards) or log (headless).
	Mode string `yaml:"mode" json:"mode"`
	// Permission is the fixed permission used in log mode.
	Permission string `yaml:"permission" json:"permission"`
}

// AuthConfig configures the token accessor for remote collaborators.
type AuthConfig struct {
	Mode         string   `yaml:"mode" json:"mode"`
	Provider     string   `yaml:"provider" json:"provider"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	TenantID     string   `yaml:"tenant_id" json:"tenant_id"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
	RedirectPort int      `yaml:"redirect_port" json:"redirect_port"`
	TokenPath    string   `yaml:"token_path" json:"token_path"`
}

// GraphConfig points at the Microsoft Graph API.
type GraphConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the card and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that defines "today" (e.g. "Europe/Rome").
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Title is shown in the card header.
	Title string `yaml:"title" json:"title"`

	Calendar      CalendarConfig      `yaml:"calendar" json:"calendar"`
	Tasks         TasksConfig         `yaml:"tasks" json:"tasks"`
	Reminder      ReminderConfig      `yaml:"reminder" json:"reminder"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Graph         GraphConfig         `yaml:"graph" json:"graph"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration carrying the
// sample day used for demos.
func DefaultConfig() *Config {
	c := &Config{
		Listen: "127.0.0.1:8080",
		Title:  "My Widget",
		Calendar: CalendarConfig{
			Source:  SourceLocal,
			Refresh: "*/15 * * * *",
			Events:  sampleEvents(),
		},
		Tasks: TasksConfig{
			Source: SourceLocal,
			List:   "Tasks",
			Items:  sampleTasks(),
		},
	}
	c.Normalize()
	return c
}

func sampleEvents() []LocalEvent {
	return []LocalEvent{
		{ID: "1", Title: "Team Meeting", Start: "09:00", End: "10:00", Category: "meeting", Online: true},
		{ID: "2", Title: "Project Review", Start: "14:30", End: "15:30", Category: "work"},
		{ID: "3", Title: "Doctor Appointment", Start: "16:00", End: "17:00", Category: "personal"},
	}
}

func sampleTasks() []LocalTask {
	return []LocalTask{
		{ID: "1", Title: "Review project documentation", Priority: "high"},
		{ID: "2", Title: "Call client about meeting", Priority: "medium"},
		{ID: "3", Title: "Buy groceries", Completed: true, Priority: "low"},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Title == "" {
		c.Title = "My Widget"
	}

	switch c.Calendar.Source {
	case SourceLocal, SourceICS, SourceGraph, SourceGoogle:
	default:
		c.Calendar.Source = SourceLocal
	}
	if c.Calendar.Refresh == "" {
		c.Calendar.Refresh = "*/15 * * * *"
	}
	if c.Calendar.Google.CalendarID == "" {
		c.Calendar.Google.CalendarID = "primary"
	}
	if c.Calendar.Keywords.Meeting == nil {
		c.Calendar.Keywords.Meeting = []string{"Meeting", "Riunione"}
	}
	if c.Calendar.Keywords.Work == nil {
		c.Calendar.Keywords.Work = []string{"Work", "Lavoro"}
	}
	if c.Calendar.Events == nil {
		c.Calendar.Events = []LocalEvent{}
	}

	switch c.Tasks.Source {
	case SourceLocal, SourceGraph:
	default:
		c.Tasks.Source = SourceLocal
	}
	if c.Tasks.List == "" {
		c.Tasks.List = "Tasks"
	}
	if c.Tasks.Items == nil {
		c.Tasks.Items = []LocalTask{}
	}

	if c.Reminder.LeadTime <= 0 {
		c.Reminder.LeadTime = 10 * time.Minute
	}
	if c.Reminder.Interval <= 0 {
		c.Reminder.Interval = time.Minute
	}
	if c.Reminder.MatchWindow < 0 {
		c.Reminder.MatchWindow = 0
	}
	if c.Reminder.Icon == "" {
		c.Reminder.Icon = "/favicon.ico"
	}
	if c.Reminder.DismissAfter <= 0 {
		c.Reminder.DismissAfter = 5 * time.Second
	}

	switch c.Notifications.Mode {
	case NotifyBrowser, NotifyLog:
	default:
		c.Notifications.Mode = NotifyBrowser
	}
	switch c.Notifications.Permission {
	case "granted", "denied", "undetermined":
	default:
		c.Notifications.Permission = "undetermined"
	}

	switch c.Auth.Mode {
	case AuthNone, AuthOAuth:
	default:
		c.Auth.Mode = AuthNone
	}
	switch c.Auth.Provider {
	case ProviderMicrosoft, ProviderGoogle:
	default:
		c.Auth.Provider = ProviderMicrosoft
	}
	if c.Auth.TenantID == "" {
		c.Auth.TenantID = "common"
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = defaultScopes(c.Auth.Provider)
	}
	if c.Auth.RedirectPort <= 0 {
		c.Auth.RedirectPort = 6789
	}

	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = "https://graph.microsoft.com/v1.0"
	}
}

func defaultScopes(provider string) []string {
	if provider == ProviderGoogle {
		return []string{"https://www.googleapis.com/auth/calendar.readonly"}
	}
	return []string{
		"offline_access",
		"https://graph.microsoft.com/Calendars.Read",
		"https://graph.microsoft.com/Tasks.ReadWrite",
	}
}

// Location resolves Timezone, falling back to the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory (0700).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file in the target directory, then
// renames it over path. The final file is 0600.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daycard-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
