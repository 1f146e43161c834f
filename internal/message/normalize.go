package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/smartlead-export/internal/smartlead"
)

// now is swappable for deterministic tests.
var now = time.Now

// Normalize maps one Smartlead history event onto the canonical message
// shape. fromEmail is the mailbox the campaign sends from; for replies the
// addresses are swapped so the lead becomes the sender.
func Normalize(ev smartlead.HistoryMessage, campaign *smartlead.Campaign, lead smartlead.Lead, fromEmail string) CanonicalMessage {
	isReply := ev.Type == smartlead.EventReply

	ts := ev.Time
	if ts == "" {
		// The history endpoint occasionally omits timestamps; falling back
		// to now keeps the event importable rather than dropping it.
		ts = now().UTC().Format(time.RFC3339)
	}

	msgID := ev.MessageID
	if msgID == "" {
		msgID = synthesizeMessageID()
	}

	seq := 1
	if n, err := ev.EmailSeqNumber.Int64(); err == nil && n > 0 {
		seq = int(n)
	}

	msg := CanonicalMessage{
		Timestamp:      ts,
		ToName:         lead.DisplayName(),
		Subject:        ev.Subject,
		CampaignID:     campaign.ID,
		CampaignName:   campaign.Name,
		SequenceNumber: seq,
		LeadID:         lead.ID,
	}

	// The bulk endpoint delivers one combined body field; it is carried as
	// both variants, matching what the live webhook sends.
	content := Body{
		MessageID: msgID,
		HTML:      ev.EmailBody,
		Text:      ev.EmailBody,
		Time:      ts,
	}

	if isReply {
		msg.Kind = KindReply
		msg.From = lead.Email
		msg.To = fromEmail
		msg.Reply = content
		// Placeholder for the original outbound message: the bulk history
		// endpoint does not return it inline, but downstream threading
		// still expects the sub-record to exist.
		msg.Sent = Body{Time: now().UTC().Format(time.RFC3339)}
	} else {
		msg.Kind = KindSent
		msg.From = fromEmail
		msg.To = lead.Email
		msg.Sent = content
	}

	return msg
}

// synthesizeMessageID builds a locally-unique placeholder Message-Id for
// events the API returned without one.
func synthesizeMessageID() string {
	return fmt.Sprintf("<%d.%s@smartlead.ai>", now().UnixNano(), uuid.NewString())
}
