// Package graph is a thin client for the Microsoft Graph calendar and To Do
// endpoints.
//
// Every exported call swallows its own failures: a non-2xx status, a network
// error, a decode error or a missing token is logged and turned into an
// empty result. Callers cannot tell "no data" from "request failed".
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"daycard/internal/auth"
	appLog "daycard/internal/log"
	"daycard/internal/metrics"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	listCacheSize = 16
	listCacheTTL  = time.Hour
)

// Client talks to one Graph tenant on behalf of the signed-in user.
type Client struct {
	baseURL string
	tokens  auth.TokenSource
	http    *http.Client

	// lists maps To Do list display names to list IDs.
	lists *expirable.LRU[string, string]
}

// NewClient builds a Client. A nil httpClient gets a 15s timeout client.
func NewClient(baseURL string, tokens auth.TokenSource, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
		lists:   expirable.NewLRU[string, string](listCacheSize, nil, listCacheTTL),
	}
}

// collection is the envelope Graph wraps list responses in.
type collection[T any] struct {
	Value []T `json:"value"`
}

// statusError is returned by do for non-2xx responses.
type statusError struct {
	Method string
	Path   string
	Status string
	Code   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph %s %s: %s", e.Method, e.Path, e.Status)
}

// do performs one authenticated request. When out is non-nil and the
// response carries a body, it is decoded into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (err error) {
	defer func() { observe(err) }()

	if c.tokens == nil {
		return auth.ErrUnauthenticated
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode graph request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{Method: method, Path: path, Status: resp.Status, Code: resp.StatusCode}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph %s %s: %w", method, path, err)
	}
	return nil
}

func observe(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUnauthenticated):
		outcome = "unauthenticated"
	default:
		outcome = "error"
	}
	metrics.RemoteRequests.WithLabelValues("graph", outcome).Inc()
}

// logFailure records a swallowed failure. Missing tokens are expected until
// the user signs in, so they log at debug.
func logFailure(msg string, err error, kv ...any) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		appLog.Debug(msg+": not signed in", kv...)
		return
	}
	appLog.Error(msg, err, kv...)
}
