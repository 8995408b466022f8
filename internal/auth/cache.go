package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"daycard/internal/config"
	appLog "daycard/internal/log"
)

// FileCache stores the token as JSON at Path with 0600 permissions.
type FileCache struct {
	Path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

func (c *FileCache) Load() (Token, bool) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("token cache read failed", err, "path", c.Path)
		}
		return Token{}, false
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		appLog.Error("token cache is corrupt; ignoring", err, "path", c.Path)
		return Token{}, false
	}
	return tok, tok.AccessToken != ""
}

func (c *FileCache) Store(tok Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(c.Path, data)
}

func (c *FileCache) Clear() error {
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryCache keeps the token in process memory.
type MemoryCache struct {
	mu  sync.Mutex
	tok Token
}

func (c *MemoryCache) Load() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok, c.tok.AccessToken != ""
}

func (c *MemoryCache) Store(tok Token) error {
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	c.tok = Token{}
	c.mu.Unlock()
	return nil
}
