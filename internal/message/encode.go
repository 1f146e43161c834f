package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// Encode serializes a canonical message into the transport form the Gmail
// insert API accepts: the full RFC 5322 bytes wrapped in padding-free
// URL-safe base64.
func Encode(msg CanonicalMessage) (string, error) {
	raw, err := BuildMIME(msg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// BuildMIME assembles the RFC 5322 message for a canonical record:
// multipart/alternative when both variants are present, single-part
// otherwise, never body-less.
func BuildMIME(msg CanonicalMessage) ([]byte, error) {
	content := msg.Content()

	var h mail.Header
	h.SetDate(messageDate(content.Time, msg.Timestamp))
	h.SetSubject(msg.Subject)

	// For sent mail the display name belongs to the recipient (the lead);
	// for replies the lead is the sender.
	switch msg.Kind {
	case KindReply:
		h.SetAddressList("From", []*mail.Address{{Name: msg.ToName, Address: msg.From}})
		h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	default:
		h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
		h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	}

	if id := stripAngles(content.MessageID); id != "" {
		h.SetMessageID(id)
	}
	if ref := stripAngles(msg.InReplyTo()); ref != "" {
		h.SetMsgIDList("In-Reply-To", []string{ref})
		h.SetMsgIDList("References", []string{ref})
	}

	// Provenance headers: audit metadata only, never parsed back.
	h.Set("X-Smartlead-Campaign-ID", fmt.Sprintf("%d", msg.CampaignID))
	h.Set("X-Smartlead-Campaign-Name", msg.CampaignName)
	h.Set("X-Smartlead-Sequence-Number", fmt.Sprintf("%d", msg.SequenceNumber))
	if msg.StatsID != "" {
		h.Set("X-Smartlead-Stats-ID", msg.StatsID)
	}
	if msg.Kind == KindReply && msg.ReplyCategory != "" {
		h.Set("X-Smartlead-Reply-Category", msg.ReplyCategory)
	}

	var buf bytes.Buffer
	switch {
	case content.HTML != "" && content.Text != "":
		h.SetContentType("multipart/alternative", nil)
		w, err := gomessage.CreateWriter(&buf, h.Header)
		if err != nil {
			return nil, fmt.Errorf("creating multipart writer: %w", err)
		}
		if err := writePart(w, "text/plain", content.Text); err != nil {
			return nil, err
		}
		if err := writePart(w, "text/html", content.HTML); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing message writer: %w", err)
		}
	case content.HTML != "":
		if err := writeSingle(&buf, h, "text/html", content.HTML); err != nil {
			return nil, err
		}
	default:
		// Plain wins as the fallback; an empty text part still yields a
		// well-formed message.
		if err := writeSingle(&buf, h, "text/plain", content.Text); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writePart(w *gomessage.Writer, contentType, body string) error {
	var ph gomessage.Header
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := w.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}

func writeSingle(buf *bytes.Buffer, h mail.Header, contentType, body string) error {
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := gomessage.CreateWriter(buf, h.Header)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("writing %s body: %w", contentType, err)
	}
	return w.Close()
}

// messageDate resolves the Date header value: the body's own timestamp
// first, the event timestamp next, current local time when neither parses.
func messageDate(bodyTime, eventTime string) time.Time {
	for _, ts := range []string{bodyTime, eventTime} {
		if ts == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			return t
		}
	}
	return now()
}

// stripAngles removes surrounding <> from a message id, if present.
func stripAngles(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
}
