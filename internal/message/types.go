// Package message converts Smartlead events into a canonical email
// representation and encodes that representation into raw RFC 5322 payloads
// ready for mailbox upload. The canonical shape is the same JSON the live
// webhook delivers, so batch export and webhook ingestion share one path.
package message

// Kind identifies the direction of a canonical message.
type Kind string

const (
	KindSent  Kind = "EMAIL_SENT"
	KindReply Kind = "EMAIL_REPLY"
)

// Body is one body variant set with its threading identity.
type Body struct {
	MessageID string `json:"message_id"`
	HTML      string `json:"html"`
	Text      string `json:"text"`
	Time      string `json:"time"`
}

// CanonicalMessage is the normalized, direction-resolved email record.
// For replies the lead is the sender and the mailbox the recipient; the
// Sent sub-record then only carries the threading reference (empty when
// the bulk-history endpoint cannot supply the original outbound message).
type CanonicalMessage struct {
	Kind           Kind   `json:"event_type"`
	Timestamp      string `json:"event_timestamp"`
	From           string `json:"from_email"`
	To             string `json:"to_email"`
	ToName         string `json:"to_name"`
	Subject        string `json:"subject"`
	CampaignID     int64  `json:"campaign_id"`
	CampaignName   string `json:"campaign_name"`
	SequenceNumber int    `json:"sequence_number"`
	LeadID         int64  `json:"lead_id"`
	StatsID        string `json:"stats_id,omitempty"`
	ReplyCategory  string `json:"reply_category,omitempty"`
	Sent           Body   `json:"sent_message"`
	Reply          Body   `json:"reply_message,omitempty"`
}

// Content returns the body variants for the message's direction.
func (m CanonicalMessage) Content() Body {
	if m.Kind == KindReply {
		return m.Reply
	}
	return m.Sent
}

// InReplyTo returns the threading reference for reply messages, or ""
// when there is none.
func (m CanonicalMessage) InReplyTo() string {
	if m.Kind != KindReply {
		return ""
	}
	return m.Sent.MessageID
}
