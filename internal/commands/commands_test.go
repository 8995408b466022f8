package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"daycard/internal/auth"
	"daycard/internal/config"
)

func newRoot(t *testing.T, mutate func(*config.Config)) (*cli.Command, *Flags, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	flags := &Flags{
		Config:    cfg,
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
	}
	var out bytes.Buffer
	root := &cli.Command{Name: "daycard", Writer: &out}
	root = NewAgendaCmd(flags).Register(root)
	root = NewAuthCmd(flags).Register(root)
	return root, flags, &out
}

func TestAgenda(t *testing.T) {
	root, _, out := newRoot(t, nil)
	require.NoError(t, root.Run(context.Background(), []string{"daycard", "agenda"}))

	got := out.String()
	assert.Contains(t, got, "09:00 - 10:00")
	assert.Contains(t, got, "Team Meeting")
	assert.Contains(t, got, "online")
	assert.Contains(t, got, "Tasks (2 remaining)")
	assert.Contains(t, got, "[x] Buy groceries")
	assert.Contains(t, got, "[ ] Review project documentation !!")
}

func TestAgenda_empty_day(t *testing.T) {
	root, _, out := newRoot(t, func(c *config.Config) { c.Calendar.Events = nil })
	require.NoError(t, root.Run(context.Background(), []string{"daycard", "agenda"}))
	assert.Contains(t, out.String(), "No events today")
}

func TestLogin_requires_oauth_mode(t *testing.T) {
	root, _, _ := newRoot(t, nil)
	err := root.Run(context.Background(), []string{"daycard", "login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth")
}

func TestLogout_clears_token(t *testing.T) {
	root, flags, out := newRoot(t, nil)
	cache := auth.NewFileCache(flags.TokenPath)
	require.NoError(t, cache.Store(auth.Token{AccessToken: "tok"}))

	require.NoError(t, root.Run(context.Background(), []string{"daycard", "logout"}))

	_, ok := cache.Load()
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Signed out")
}

func TestTokenPath_prefers_config(t *testing.T) {
	f := &Flags{TokenPath: "/flag/token.json", Config: config.DefaultConfig()}
	assert.Equal(t, "/flag/token.json", f.tokenPath())

	f.Config.Auth.TokenPath = "/config/token.json"
	assert.Equal(t, "/config/token.json", f.tokenPath())
}
