// Package gmail is the mailbox collaborator: it owns OAuth token lifecycle,
// label management, and raw-message insertion. The export orchestrator only
// ever sees the Uploader.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ignite/smartlead-export/internal/config"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// Authenticator manages the persisted OAuth token for the Gmail account.
// The interactive authorization happens through the webhook app's
// /oauth2callback; batch exports only consume the stored token.
type Authenticator struct {
	oauthCfg  *oauth2.Config
	tokenFile string

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewAuthenticator builds an Authenticator from Gmail config. redirectURL
// may be empty for batch use, where no interactive flow is ever started.
func NewAuthenticator(cfg config.GmailConfig, redirectURL string) *Authenticator {
	a := &Authenticator{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{gmailapi.GmailModifyScope},
		},
		tokenFile: cfg.TokenFile,
	}
	a.tok = a.loadToken()
	return a
}

// IsAuthenticated reports whether a usable token is on file.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tok != nil && (a.tok.Valid() || a.tok.RefreshToken != "")
}

// AuthURL returns the Google consent URL for the interactive flow.
func (a *Authenticator) AuthURL() string {
	return a.oauthCfg.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	tok, err := a.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	a.mu.Lock()
	a.tok = tok
	a.mu.Unlock()
	return a.saveToken(tok)
}

// Service builds a Gmail API service from the stored token, refreshing it
// as needed. Missing authentication is a fatal startup error; nothing else
// should touch the network before this succeeds.
func (a *Authenticator) Service(ctx context.Context) (*gmailapi.Service, error) {
	a.mu.Lock()
	tok := a.tok
	a.mu.Unlock()
	if tok == nil {
		return nil, fmt.Errorf("gmail not authenticated: run the webhook app and complete the OAuth flow first")
	}

	src := a.oauthCfg.TokenSource(ctx, tok)
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(tok, &savingSource{auth: a, src: src})))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

// savingSource persists refreshed tokens so the next run does not need to
// refresh again from a stale access token.
type savingSource struct {
	auth *Authenticator
	src  oauth2.TokenSource
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.auth.mu.Lock()
	changed := s.auth.tok == nil || s.auth.tok.AccessToken != tok.AccessToken
	s.auth.tok = tok
	s.auth.mu.Unlock()

	if changed {
		if err := s.auth.saveToken(tok); err != nil {
			logger.Warn("failed to persist refreshed gmail token", "error", err)
		}
	}
	return tok, nil
}

func (a *Authenticator) loadToken() *oauth2.Token {
	data, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logger.Warn("gmail token file unreadable, re-authentication required",
			"path", a.tokenFile, "error", err)
		return nil
	}
	return &tok
}

func (a *Authenticator) saveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling gmail token: %w", err)
	}
	if err := os.WriteFile(a.tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("writing gmail token file: %w", err)
	}
	return nil
}
