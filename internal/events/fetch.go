package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "daycard/internal/log"
	"daycard/internal/metrics"
)

// Fetcher downloads ICS feeds with conditional requests (ETag /
// Last-Modified) and keeps the last good body on disk. When the network
// fails or the server errors, the cached body is served instead.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// feedMeta is the HTTP cache metadata stored next to a feed body.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFetcher builds a Fetcher. An empty cacheDir disables the disk cache.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch returns the feed body and whether it came from the cache.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (body []byte, fromCache bool, err error) {
	if feedURL == "" {
		return nil, false, errors.New("ics feed url is empty")
	}
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case fromCache:
			outcome = "cached"
		}
		metrics.RemoteRequests.WithLabelValues("ics", outcome).Inc()
	}()

	dir := f.entryDir(feedURL)
	meta, cached := f.load(dir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, false, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("ics fetch failed; using cached feed", err, "url", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("read ics feed: %w", err)
		}
		meta = feedMeta{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := f.save(dir, meta, data); err != nil {
			appLog.Error("ics cache save failed", err, "url", redactURL(feedURL))
		}
		appLog.Debug("ics feed fetched", "url", redactURL(feedURL), "bytes", len(data))
		return data, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("ics feed: 304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed not modified", "url", redactURL(feedURL))
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Error("ics fetch non-OK; using cached feed", errors.New(resp.Status), "url", redactURL(feedURL))
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("ics feed: %s", resp.Status)
	}
}

func (f *Fetcher) entryDir(feedURL string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) load(dir string) (feedMeta, []byte) {
	var meta feedMeta
	if dir == "" {
		return meta, nil
	}
	if data, err := os.ReadFile(filepath.Join(dir, "meta.json")); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	body, _ := os.ReadFile(filepath.Join(dir, "body.ics"))
	return meta, body
}

func (f *Fetcher) save(dir string, meta feedMeta, body []byte) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; private feed URLs carry secrets in
// the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
