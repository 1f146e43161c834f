package gmail

import (
	"context"
	"fmt"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ignite/smartlead-export/internal/config"
	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// UploadResult reports the Gmail identity of an inserted message.
type UploadResult struct {
	MessageID string
	ThreadID  string
}

// Uploader inserts raw messages into the Gmail account, labeled by event
// direction. The label id cache belongs to the Uploader instance; there is
// no process-wide label state.
type Uploader struct {
	svc          *gmailapi.Service
	labelSent    string
	labelReplies string
	labelIDs     map[string]string
}

// NewUploader creates an Uploader and ensures both labels exist up front so
// per-message inserts never pay the lookup.
func NewUploader(svc *gmailapi.Service, cfg config.GmailConfig) (*Uploader, error) {
	u := &Uploader{
		svc:          svc,
		labelSent:    cfg.LabelSent,
		labelReplies: cfg.LabelReplies,
		labelIDs:     make(map[string]string),
	}
	if err := u.ensureLabels(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Uploader) ensureLabels() error {
	resp, err := u.svc.Users.Labels.List("me").Do()
	if err != nil {
		return fmt.Errorf("listing gmail labels: %w", err)
	}

	existing := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		existing[l.Name] = l.Id
	}

	for _, name := range []string{u.labelSent, u.labelReplies} {
		if id, ok := existing[name]; ok {
			u.labelIDs[name] = id
			continue
		}
		created, err := u.svc.Users.Labels.Create("me", &gmailapi.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Do()
		if err != nil {
			return fmt.Errorf("creating gmail label %q: %w", name, err)
		}
		u.labelIDs[name] = created.Id
		logger.Info("created gmail label", "label", name)
	}
	return nil
}

// UploadRaw inserts a base64url-encoded RFC 5322 payload into the mailbox
// under the sent or replies label.
func (u *Uploader) UploadRaw(ctx context.Context, raw string, kind message.Kind) (*UploadResult, error) {
	labelName := u.labelSent
	if kind == message.KindReply {
		labelName = u.labelReplies
	}

	body := &gmailapi.Message{Raw: raw}
	if id, ok := u.labelIDs[labelName]; ok {
		body.LabelIds = []string{id}
	}

	inserted, err := u.svc.Users.Messages.Insert("me", body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	return &UploadResult{MessageID: inserted.Id, ThreadID: inserted.ThreadId}, nil
}
