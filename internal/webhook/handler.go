// Package webhook ingests live Smartlead email events over HTTP. It shares
// the canonical message shape and MIME encoder with the batch exporter, so
// a message arriving via webhook lands in the mailbox exactly as it would
// from a bulk run.
package webhook

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/smartlead-export/internal/export"
	"github.com/ignite/smartlead-export/internal/gmail"
	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/httputil"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
	"github.com/ignite/smartlead-export/internal/tracker"
)

// Uploader hands an encoded payload to the mailbox service.
type Uploader interface {
	UploadRaw(ctx context.Context, raw string, kind message.Kind) (*gmail.UploadResult, error)
}

// Authenticator is the slice of the OAuth lifecycle the server needs.
type Authenticator interface {
	IsAuthenticated() bool
	AuthURL() string
	Exchange(ctx context.Context, code string) error
}

// CRM mirrors reply activity into an external CRM. Sync failures are
// logged, never surfaced to the webhook sender.
type CRM interface {
	SyncReply(ctx context.Context, msg message.CanonicalMessage) error
}

// Server handles webhook ingestion plus the OAuth bootstrap flow. The
// uploader is obtained lazily so the server can start before the mailbox
// account has been authorized.
type Server struct {
	secretKey   string
	auth        Authenticator
	newUploader func(ctx context.Context) (Uploader, error)
	tracker     *tracker.Tracker
	crm         CRM

	mu       sync.Mutex
	uploader Uploader
}

// NewServer creates a Server. tracker may be nil to disable webhook-side
// deduplication.
func NewServer(secretKey string, auth Authenticator, newUploader func(ctx context.Context) (Uploader, error), tr *tracker.Tracker) *Server {
	return &Server{
		secretKey:   secretKey,
		auth:        auth,
		newUploader: newUploader,
		tracker:     tr,
	}
}

// SetCRM enables reply mirroring into a CRM.
func (s *Server) SetCRM(crm CRM) { s.crm = crm }

// Router builds the HTTP routing table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Get("/health", s.handleHealth)
	r.Get("/auth", s.handleAuth)
	r.Get("/oauth2callback", s.handleOAuthCallback)
	r.Post("/webhook", s.handleWebhook)

	return r
}

// payload is the wire shape of a webhook delivery: the canonical message
// plus the shared secret Smartlead echoes back on every call.
type payload struct {
	SecretKey string `json:"secret_key"`
	message.CanonicalMessage
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]any{
		"status":        "ok",
		"authenticated": s.auth.IsAuthenticated(),
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.auth.IsAuthenticated() {
		httputil.OK(w, map[string]string{"status": "already authenticated"})
		return
	}
	http.Redirect(w, r, s.auth.AuthURL(), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Error(w, http.StatusBadRequest, "missing code parameter")
		return
	}
	if err := s.auth.Exchange(r.Context(), code); err != nil {
		logger.Error("oauth exchange failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "token exchange failed")
		return
	}
	logger.Info("mailbox account authorized")
	httputil.OK(w, map[string]string{"status": "authenticated"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var p payload
	if !httputil.Decode(w, r, &p) {
		return
	}

	if s.secretKey != "" && p.SecretKey != s.secretKey {
		logger.Warn("webhook rejected: bad secret key", "remote", r.RemoteAddr)
		httputil.Error(w, http.StatusUnauthorized, "invalid secret key")
		return
	}

	if p.Kind != message.KindSent && p.Kind != message.KindReply {
		// Opens, clicks, bounces and the like carry no email payload.
		httputil.OK(w, map[string]string{"status": "ignored", "event_type": string(p.Kind)})
		return
	}

	if !s.auth.IsAuthenticated() {
		httputil.Error(w, http.StatusServiceUnavailable, "mailbox not authorized yet, visit /auth first")
		return
	}

	fp := export.Fingerprint(p.CampaignID, p.LeadID, p.Timestamp, p.Subject)
	if s.tracker != nil && s.tracker.Contains(fp) {
		httputil.OK(w, map[string]string{"status": "duplicate"})
		return
	}

	up, err := s.getUploader(r.Context())
	if err != nil {
		logger.Error("uploader unavailable", "error", err)
		httputil.Error(w, http.StatusServiceUnavailable, "mailbox unavailable")
		return
	}

	raw, err := message.Encode(p.CanonicalMessage)
	if err != nil {
		logger.Error("webhook message encoding failed", "lead_id", p.LeadID, "error", err)
		httputil.Error(w, http.StatusUnprocessableEntity, "message could not be encoded")
		return
	}

	res, err := up.UploadRaw(r.Context(), raw, p.Kind)
	if err != nil {
		logger.Error("webhook upload failed",
			"campaign_id", p.CampaignID, "lead_id", p.LeadID, "error", err)
		httputil.Error(w, http.StatusBadGateway, "mailbox upload failed")
		return
	}

	if s.tracker != nil {
		s.tracker.Record(r.Context(), fp)
		if err := s.tracker.Flush(r.Context()); err != nil {
			logger.Warn("tracking flush failed after webhook upload", "error", err)
		}
	}

	if s.crm != nil && p.Kind == message.KindReply {
		if err := s.crm.SyncReply(r.Context(), p.CanonicalMessage); err != nil {
			logger.Warn("crm reply sync failed", "lead_id", p.LeadID, "error", err)
		}
	}

	logger.Info("webhook event uploaded",
		"event_type", p.Kind, "campaign_id", p.CampaignID, "lead_id", p.LeadID,
		"mailbox_message_id", res.MessageID)
	httputil.OK(w, map[string]string{
		"status":     "uploaded",
		"message_id": res.MessageID,
	})
}

func (s *Server) getUploader(ctx context.Context) (Uploader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploader != nil {
		return s.uploader, nil
	}
	up, err := s.newUploader(ctx)
	if err != nil {
		return nil, err
	}
	s.uploader = up
	return up, nil
}
