package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"daycard/internal/config"
	appLog "daycard/internal/log"
)

const callbackPath = "/callback"

// OAuthFlow runs the OAuth 2.0 authorization-code flow with PKCE, capturing
// the redirect on a loopback listener.
type OAuthFlow struct {
	Config *oauth2.Config

	// ListenAddr is the loopback address of the redirect listener. Its port
	// must match the redirect URI registered with the provider.
	ListenAddr string

	// Open presents the authorization URL to the user.
	Open func(authURL string)

	// Timeout bounds how long we wait for the user to authorize.
	Timeout time.Duration
}

// NewOAuthFlow builds a flow for the configured provider.
func NewOAuthFlow(cfg config.AuthConfig, open func(string)) (*OAuthFlow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("auth: client_id is required for the oauth flow")
	}

	var endpoint oauth2.Endpoint
	switch cfg.Provider {
	case config.ProviderGoogle:
		endpoint = google.Endpoint
	default:
		endpoint = microsoft.AzureADEndpoint(cfg.TenantID)
	}

	return &OAuthFlow{
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		ListenAddr: fmt.Sprintf("127.0.0.1:%d", cfg.RedirectPort),
		Open:       open,
		Timeout:    5 * time.Minute,
	}, nil
}

// Authenticate implements Authenticator.
func (f *OAuthFlow) Authenticate(ctx context.Context) (Token, error) {
	ln, err := net.Listen("tcp", f.ListenAddr)
	if err != nil {
		return Token{}, fmt.Errorf("listen for oauth redirect on %s: %w", f.ListenAddr, err)
	}
	defer ln.Close()

	conf := *f.Config
	conf.RedirectURL = "http://" + ln.Addr().String() + callbackPath

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization failed", http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization denied: %s %s", e, q.Get("error_description")))
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			sendErr(errCh, errors.New("oauth state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			sendErr(errCh, errors.New("authorization code not found in redirect URL"))
			return
		}
		_, _ = w.Write([]byte("Authentication successful! You can close this window."))
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, fmt.Errorf("oauth redirect server: %w", err))
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	appLog.Info("waiting for oauth authorization", "redirect", conf.RedirectURL)
	if f.Open != nil {
		f.Open(authURL)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := conf.Exchange(exCtx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			return Token{}, fmt.Errorf("exchange authorization code: %w", err)
		}
		return Token{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry,
		}, nil
	case err := <-errCh:
		return Token{}, err
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case <-time.After(timeout):
		return Token{}, errors.New("authorization timed out, please try again")
	}
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
