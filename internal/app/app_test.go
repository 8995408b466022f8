package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycard/internal/auth"
	"daycard/internal/config"
	"daycard/internal/model"
)

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Listen = "127.0.0.1:0"
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()
	return cfg
}

func TestNew_local_defaults(t *testing.T) {
	a, err := New(testConfig(nil), Options{})
	require.NoError(t, err)

	assert.Equal(t, config.SourceLocal, a.Events.SourceName())
	assert.NotNil(t, a.Hub)
	assert.Nil(t, a.Permissions)
	assert.False(t, a.Auth.IsAuthenticated())

	a.Load(context.Background())
	events := a.Events.ListTodaysEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "Team Meeting", events[0].Title)
	assert.Len(t, a.Tasks.List(), 3)
	assert.Equal(t, 2, a.Tasks.Remaining())
}

func TestNew_remote_without_token_falls_back_to_local(t *testing.T) {
	cfg := testConfig(func(c *config.Config) {
		c.Calendar.Source = config.SourceGraph
		c.Tasks.Source = config.SourceGraph
	})
	a, err := New(cfg, Options{TokenPath: filepath.Join(t.TempDir(), "token.json")})
	require.NoError(t, err)

	assert.Equal(t, config.SourceLocal, a.Events.SourceName())
}

func TestNew_remote_with_cached_token(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, auth.NewFileCache(path).Store(auth.Token{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	for _, source := range []string{config.SourceGraph, config.SourceGoogle} {
		cfg := testConfig(func(c *config.Config) { c.Calendar.Source = source })
		a, err := New(cfg, Options{TokenPath: path})
		require.NoError(t, err)
		assert.True(t, a.Auth.IsAuthenticated())
		assert.Equal(t, source, a.Events.SourceName())
	}
}

func TestNew_token_path_from_config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, auth.NewFileCache(path).Store(auth.Token{AccessToken: "tok"}))

	cfg := testConfig(func(c *config.Config) { c.Auth.TokenPath = path })
	a, err := New(cfg, Options{})
	require.NoError(t, err)
	assert.True(t, a.Auth.IsAuthenticated())
}

func TestNew_log_mode(t *testing.T) {
	cfg := testConfig(func(c *config.Config) {
		c.Notifications.Mode = config.NotifyLog
		c.Notifications.Permission = "granted"
	})
	a, err := New(cfg, Options{})
	require.NoError(t, err)

	assert.Nil(t, a.Hub)
	require.NotNil(t, a.Permissions)
	assert.Equal(t, model.PermissionGranted, a.Gate.Permission())
}

func TestRun_stops_on_cancel(t *testing.T) {
	cfg := testConfig(func(c *config.Config) { c.Notifications.Mode = config.NotifyLog })
	a, err := New(cfg, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Len(t, a.Events.ListTodaysEvents(), 3)
}

func TestRun_rejects_bad_refresh_spec(t *testing.T) {
	cfg := testConfig(func(c *config.Config) { c.Calendar.Refresh = "not a schedule" })
	a, err := New(cfg, Options{})
	require.NoError(t, err)

	assert.Error(t, a.Run(context.Background()))
}
