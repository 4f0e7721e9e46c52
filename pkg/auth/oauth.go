// Package auth runs the OAuth2 desktop flow for the Google Calendar
// collaborator and caches the resulting token under the config directory.
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
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// ClientSecretsFile is the downloaded Google API credentials file, read
	// from the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the access and refresh token.
	TokenFile = "token.json"

	// LocalhostAuthPort is where the redirect listener runs.
	LocalhostAuthPort = "6789"

	AppName = "effitime"

	authTimeout = 5 * time.Minute
)

// Scopes are the calendar permissions effitime asks for. Free/busy needs
// read access; publishing committed slots needs events.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// ConfigDir returns ~/.config/effitime.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Flow loads credentials from Dir and obtains tokens.
type Flow struct {
	Dir    string
	Scopes []string
	Log    *zap.Logger
	// Prompt shows the authorization URL to the user.
	Prompt func(authURL string)
}

func (f *Flow) logger() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

func (f *Flow) scopes() []string {
	if len(f.Scopes) == 0 {
		return Scopes
	}
	return f.Scopes
}

// Config parses the client secrets file and pins localhost redirects to
// LocalhostAuthPort.
func (f *Flow) Config() (*oauth2.Config, error) {
	path := filepath.Join(f.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, f.scopes()...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	cfg.RedirectURL = fixRedirect(cfg.RedirectURL, f.logger())
	return cfg, nil
}

// fixRedirect rewrites out-of-band and portless localhost redirects to the
// local listener. Other hosts are kept.
func fixRedirect(redirect string, log *zap.Logger) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		log.Warn("unparsable redirect url, using as is", zap.String("redirect", redirect), zap.Error(err))
		return redirect
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.Warn("redirect url is not a localhost callback", zap.String("redirect", redirect))
		return redirect
	}
	if u.Port() != LocalhostAuthPort {
		u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
	}
	return u.String()
}

// Client returns an authenticated HTTP client, running the browser flow
// when no cached token exists.
func (f *Flow) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, err
	}
	tokenPath := filepath.Join(f.Dir, TokenFile)
	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		f.logger().Info("no cached token, starting authorization", zap.String("path", tokenPath))
		if tok, err = f.tokenFromWeb(ctx, cfg); err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
		if err := saveToken(tokenPath, tok); err != nil {
			return nil, err
		}
	}

	// Persist refreshed tokens so the next run does not re-authorize.
	src := oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok))
	current, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if current.AccessToken != tok.AccessToken || current.RefreshToken != tok.RefreshToken {
		if err := saveToken(tokenPath, current); err != nil {
			f.logger().Warn("could not save refreshed token", zap.Error(err))
		}
	}
	return oauth2.NewClient(ctx, src), nil
}

// Authorize runs the browser flow unconditionally and caches the token.
func (f *Flow) Authorize(ctx context.Context) error {
	cfg, err := f.Config()
	if err != nil {
		return err
	}
	tok, err := f.tokenFromWeb(ctx, cfg)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	return saveToken(filepath.Join(f.Dir, TokenFile), tok)
}

func (f *Flow) tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", "127.0.0.1:"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("listen on port %s: %w", LocalhostAuthPort, err)
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect"):
				default:
				}
				return
			}
			fmt.Fprint(w, "Authentication successful! You can close this window.")
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
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("redirect server: %w", err):
			default:
			}
		}
	}()
	defer server.Close()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	if f.Prompt != nil {
		f.Prompt(authURL)
	} else {
		fmt.Printf("Open the following URL in your browser to authorize effitime:\n%s\n", authURL)
	}
	f.logger().Info("waiting for authorization code", zap.String("redirect", cfg.RedirectURL))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization timed out: %w", ctx.Err())
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("save token: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("save token: encode: %w", err)
	}
	return nil
}
