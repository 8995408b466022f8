package commands

import (
	"os"
	"path/filepath"

	"daycard/internal/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	TokenPath  string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "daycard", "config.yaml")
}

// DefaultTokenPath returns where `daycard login` caches its token.
func DefaultTokenPath() string {
	return filepath.Join(configHome(), "daycard", "token.json")
}

func configHome() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return dir
}

// tokenPath prefers the config file's token_path over the flag.
func (f *Flags) tokenPath() string {
	if f.Config != nil && f.Config.Auth.TokenPath != "" {
		return f.Config.Auth.TokenPath
	}
	return f.TokenPath
}
