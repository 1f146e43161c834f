package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smartlead-export/internal/gmail"
	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/tracker"
)

type fakeAuth struct {
	authenticated bool
	exchangeErr   error
	exchanged     string
}

func (f *fakeAuth) IsAuthenticated() bool { return f.authenticated }
func (f *fakeAuth) AuthURL() string       { return "https://accounts.example.test/authorize" }
func (f *fakeAuth) Exchange(_ context.Context, code string) error {
	if f.exchangeErr != nil {
		return f.exchangeErr
	}
	f.exchanged = code
	f.authenticated = true
	return nil
}

type fakeUploader struct {
	calls int
	kinds []message.Kind
	err   error
}

func (f *fakeUploader) UploadRaw(_ context.Context, _ string, kind message.Kind) (*gmail.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	f.kinds = append(f.kinds, kind)
	return &gmail.UploadResult{MessageID: "inserted-1"}, nil
}

func newTestServer(t *testing.T, up *fakeUploader, auth *fakeAuth) (*Server, *tracker.Tracker) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracking.json")
	tr, err := tracker.New(context.Background(), tracker.NewFileStore(path), 10)
	require.NoError(t, err)
	srv := NewServer("topsecret", auth, func(context.Context) (Uploader, error) { return up, nil }, tr)
	return srv, tr
}

func sentPayload(secret string) map[string]any {
	return map[string]any{
		"secret_key":      secret,
		"event_type":      "EMAIL_SENT",
		"event_timestamp": "2024-03-01T10:00:00Z",
		"from_email":      "sender@ignite.test",
		"to_email":        "ana@acme.test",
		"to_name":         "Ana",
		"subject":         "Quick question",
		"campaign_id":     101,
		"campaign_name":   "Spring Outreach",
		"sequence_number": 1,
		"lead_id":         1,
		"sent_message": map[string]any{
			"message_id": "<orig-1@smartlead.ai>",
			"html":       "<p>Hi Ana</p>",
			"text":       "Hi Ana",
			"time":       "2024-03-01T10:00:00Z",
		},
	}
}

func postWebhook(t *testing.T, srv *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestWebhookUploadsSentEvent(t *testing.T) {
	up := &fakeUploader{}
	srv, tr := newTestServer(t, up, &fakeAuth{authenticated: true})

	rec := postWebhook(t, srv, sentPayload("topsecret"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, []message.Kind{message.KindSent}, up.kinds)
	assert.Equal(t, 1, tr.Len())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "uploaded", resp["status"])
	assert.Equal(t, "inserted-1", resp["message_id"])
}

type fakeCRM struct {
	replies []message.CanonicalMessage
	err     error
}

func (f *fakeCRM) SyncReply(_ context.Context, msg message.CanonicalMessage) error {
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, msg)
	return nil
}

func TestWebhookMirrorsRepliesToCRM(t *testing.T) {
	up := &fakeUploader{}
	srv, _ := newTestServer(t, up, &fakeAuth{authenticated: true})
	crm := &fakeCRM{}
	srv.SetCRM(crm)

	// Sent events never touch the CRM.
	rec := postWebhook(t, srv, sentPayload("topsecret"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, crm.replies)

	// The reply carries its own timestamp and subject so it fingerprints
	// separately from the sent event above.
	p := sentPayload("topsecret")
	p["event_type"] = "EMAIL_REPLY"
	p["event_timestamp"] = "2024-03-02T09:00:00Z"
	p["subject"] = "Re: Quick question"
	p["from_email"] = "ana@acme.test"
	p["to_email"] = "sender@ignite.test"
	p["reply_category"] = "Interested"
	p["reply_message"] = map[string]any{
		"message_id": "<reply-1@acme.test>",
		"text":       "Sounds good",
		"time":       "2024-03-02T09:00:00Z",
	}
	rec = postWebhook(t, srv, p)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, crm.replies, 1)
	assert.Equal(t, "ana@acme.test", crm.replies[0].From)
	assert.Equal(t, "Interested", crm.replies[0].ReplyCategory)
}

func TestWebhookCRMFailureDoesNotFailDelivery(t *testing.T) {
	up := &fakeUploader{}
	srv, tr := newTestServer(t, up, &fakeAuth{authenticated: true})
	srv.SetCRM(&fakeCRM{err: errors.New("crm down")})

	p := sentPayload("topsecret")
	p["event_type"] = "EMAIL_REPLY"
	rec := postWebhook(t, srv, p)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, 1, tr.Len())
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	up := &fakeUploader{}
	srv, _ := newTestServer(t, up, &fakeAuth{authenticated: true})

	rec := postWebhook(t, srv, sentPayload("wrong"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, up.calls)
}

func TestWebhookIgnoresNonEmailEvents(t *testing.T) {
	up := &fakeUploader{}
	srv, _ := newTestServer(t, up, &fakeAuth{authenticated: true})

	p := sentPayload("topsecret")
	p["event_type"] = "EMAIL_OPEN"
	rec := postWebhook(t, srv, p)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, up.calls)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhookUnavailableBeforeAuth(t *testing.T) {
	up := &fakeUploader{}
	srv, _ := newTestServer(t, up, &fakeAuth{authenticated: false})

	rec := postWebhook(t, srv, sentPayload("topsecret"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, up.calls)
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	up := &fakeUploader{}
	srv, _ := newTestServer(t, up, &fakeAuth{authenticated: true})

	first := postWebhook(t, srv, sentPayload("topsecret"))
	second := postWebhook(t, srv, sentPayload("topsecret"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, up.calls)
	assert.Contains(t, second.Body.String(), "duplicate")
}

func TestWebhookUploadFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("backend error")}
	srv, tr := newTestServer(t, up, &fakeAuth{authenticated: true})

	rec := postWebhook(t, srv, sentPayload("topsecret"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// Failed deliveries stay untracked so Smartlead's retry goes through.
	assert.Equal(t, 0, tr.Len())
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUploader{}, &fakeAuth{authenticated: true})

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackExchangesCode(t *testing.T) {
	auth := &fakeAuth{}
	srv, _ := newTestServer(t, &fakeUploader{}, auth)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=abc123", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", auth.exchanged)
	assert.True(t, auth.authenticated)
}

func TestAuthRedirectsWhenUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUploader{}, &fakeAuth{})

	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://accounts.example.test/authorize", rec.Header().Get("Location"))
}

func TestHealthReportsAuthState(t *testing.T) {
	srv, _ := newTestServer(t, &fakeUploader{}, &fakeAuth{authenticated: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["authenticated"])
}
