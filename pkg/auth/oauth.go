package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

const (
	// ClientSecretsFile is the Google OAuth client downloaded from the cloud console,
	// stored in the config directory.
	ClientSecretsFile = "credentials.json"

	// GoogleTokenFile and GraphTokenFile hold the cached access + refresh tokens.
	GoogleTokenFile = "token.json"
	GraphTokenFile  = "graph_token.json"

	// LocalhostAuthPort is where the local server captures the OAuth redirect.
	LocalhostAuthPort = "6789"

	ProviderGoogle = "google"
	ProviderGraph  = "graph"
)

var (
	GoogleScopes = []string{
		calendar.CalendarEventsScope,
		calendar.CalendarReadonlyScope,
		tasks.TasksReadonlyScope,
	}
	GraphScopes = []string{"offline_access", "Tasks.ReadWrite", "Calendars.ReadWrite"}
)

// GoogleConfig creates an oauth2.Config from the client secrets file in dir.
func GoogleConfig(dir string, scopes []string) (*oauth2.Config, error) {
	path := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.AuthError{Provider: ProviderGoogle, Message: "unable to read client secret file " + path, Cause: err}
	}

	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, &errs.AuthError{Provider: ProviderGoogle, Message: "unable to parse client secret file", Cause: err}
	}
	normalizeRedirect(cfg)
	return cfg, nil
}

// MicrosoftConfig creates a public-client oauth2.Config for the Microsoft identity platform.
func MicrosoftConfig(clientID, tenant string) (*oauth2.Config, error) {
	if clientID == "" {
		return nil, &errs.AuthError{Provider: ProviderGraph, Message: "graph.client_id is not configured"}
	}
	if tenant == "" {
		tenant = "common"
	}
	return &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    microsoft.AzureADEndpoint(tenant),
		Scopes:      GraphScopes,
		RedirectURL: fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort),
	}, nil
}

// normalizeRedirect forces localhost and out-of-band redirects onto LocalhostAuthPort,
// which is where getTokenFromWeb listens.
func normalizeRedirect(cfg *oauth2.Config) {
	if cfg.RedirectURL == "urn:ietf:wg:oauth:2.0:oob" || cfg.RedirectURL == "" {
		cfg.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		return
	}

	parsed, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		log.Warn().Err(err).Str("redirect_url", cfg.RedirectURL).Msg("could not parse redirect URL, using it as is")
		return
	}
	if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
		log.Warn().Str("redirect_url", cfg.RedirectURL).Msg("redirect URL is not a localhost callback")
		return
	}
	if parsed.Port() != LocalhostAuthPort {
		parsed.Host = net.JoinHostPort(parsed.Hostname(), LocalhostAuthPort)
		cfg.RedirectURL = parsed.String()
	}
}

// Client returns an HTTP client that refreshes and re-saves the token in tokenFile.
// Without a cached token it runs the browser flow when interactive is set and fails
// with an *errs.AuthError otherwise.
func Client(ctx context.Context, provider string, cfg *oauth2.Config, tokenFile string, interactive bool) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if !interactive {
			return nil, &errs.AuthError{Provider: provider, Message: "no cached token, run `taskslot auth " + provider + "`", Cause: err}
		}
		log.Info().Str("token_file", tokenFile).Msg("no existing token, starting web authorization flow")
		if tok, err = getTokenFromWeb(ctx, provider, cfg); err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := &savingTokenSource{
		provider: provider,
		src:      cfg.TokenSource(ctx, tok),
		path:     tokenFile,
		last:     tok,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// EnvClient returns a client authorized with the bearer token in the environment
// variable env. Such tokens are never refreshed.
func EnvClient(ctx context.Context, provider, env string) (*http.Client, error) {
	tok := strings.TrimSpace(os.Getenv(env))
	if tok == "" {
		return nil, &errs.AuthError{Provider: provider, Message: fmt.Sprintf("environment variable %s is not set", env)}
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})), nil
}

// Authorize discards any cached token and runs the browser flow again.
func Authorize(ctx context.Context, provider string, cfg *oauth2.Config, tokenFile string) error {
	if err := os.Remove(tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s, please delete it manually: %w", tokenFile, err)
	}
	tok, err := getTokenFromWeb(ctx, provider, cfg)
	if err != nil {
		return err
	}
	return saveToken(tokenFile, tok)
}

// savingTokenSource persists refreshed tokens so the next process starts from them.
type savingTokenSource struct {
	provider string
	src      oauth2.TokenSource
	path     string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, &errs.AuthError{Provider: s.provider, Message: "token refresh failed", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			log.Warn().Err(err).Str("token_file", s.path).Msg("could not save refreshed token")
		}
		s.last = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow, capturing the redirect on a
// local web server.
func getTokenFromWeb(ctx context.Context, provider string, cfg *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	state := uuid.NewString()

	listener, err := net.Listen("tcp", ":"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- &errs.AuthError{Provider: provider, Message: "authorization code not found in redirect: " + q.Get("error_description")}:
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info().Str("redirect_url", cfg.RedirectURL).Msg("listening for OAuth2 redirect")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	// AccessTypeOffline is required to get a refresh token back.
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(os.Stderr, "Open the following URL in your browser to authorize taskslot:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, &errs.AuthError{Provider: provider, Message: "unable to exchange authorization code", Cause: err}
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, &errs.AuthError{Provider: provider, Message: "authorization timed out, please try again"}
	}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	log.Debug().Str("token_file", path).Msg("saving authentication token")
	return json.NewEncoder(f).Encode(token)
}
