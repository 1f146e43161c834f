package smartlead

import "encoding/json"

// Event type markers as they appear in the message-history payload.
const (
	EventSent  = "SENT"
	EventReply = "REPLY"
)

// Config holds the settings for the Smartlead API client.
type Config struct {
	BaseURL     string
	APIKey      string
	AuthStyle   string // "query" sends api_key as a query parameter, "bearer" as a header
	MaxAttempts int
	PageSize    int
	PageDelayMS int
}

// Campaign is a Smartlead campaign record.
// ClientID is kept as a json.Number because the API has been observed
// returning it both as a number and as a string; comparisons are always
// done on the string form.
type Campaign struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Status   string      `json:"status"`
	ClientID json.Number `json:"client_id"`
}

// LeadEntry is one element of the campaign leads listing. The lead record
// itself is nested under "lead".
type LeadEntry struct {
	Lead Lead `json:"lead"`
}

// Lead is the contact a campaign step was sent to.
type Lead struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns "First Last" with surrounding whitespace trimmed,
// or "" when neither name is set.
func (l Lead) DisplayName() string {
	name := l.FirstName
	if l.LastName != "" {
		if name != "" {
			name += " "
		}
		name += l.LastName
	}
	return name
}

// leadPageResponse is the paginated leads listing envelope.
type leadPageResponse struct {
	Data       []LeadEntry `json:"data"`
	TotalLeads json.Number `json:"total_leads"`
}

// MessageHistory is the per-lead event history envelope. From is the
// mailbox address the campaign sent from.
type MessageHistory struct {
	From    string           `json:"from"`
	History []HistoryMessage `json:"history"`
}

// HistoryMessage is a single sent or reply event from the bulk history
// endpoint. The body arrives as one combined field; there is no separate
// HTML/text split at this boundary.
type HistoryMessage struct {
	Type      string `json:"type"` // EventSent or EventReply
	Time      string `json:"time"`
	Subject   string `json:"subject"`
	EmailBody string `json:"email_body"`
	MessageID string `json:"message_id"`
	// EmailSeqNumber is the campaign step index, when the API provides it.
	EmailSeqNumber json.Number `json:"email_seq_number"`
}
