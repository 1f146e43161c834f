package attio

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
	"github.com/ignite/smartlead-export/internal/smartlead"
)

// Pipeline stage titles in the outreach list.
const (
	StageEmailSent       = "Email Sent"
	StageInterestedReply = "Interested Reply"
	StageBooked          = "Booked"
)

// interestedCategories are the Smartlead reply categories that move a
// company to the interested stage.
var interestedCategories = map[string]bool{
	"Interested":          true,
	"Meeting Request":     true,
	"Information Request": true,
}

// Syncer mirrors campaign activity into an Attio pipeline list.
type Syncer struct {
	client   *Client
	listName string
}

// NewSyncer creates a Syncer for the named pipeline list.
func NewSyncer(client *Client, listName string) *Syncer {
	if listName == "" {
		listName = "Digital Outreach"
	}
	return &Syncer{client: client, listName: listName}
}

// SyncLead makes sure the lead's company and person exist in the CRM and
// that the company sits on the pipeline list.
func (s *Syncer) SyncLead(ctx context.Context, lead smartlead.Lead, campaign *smartlead.Campaign) error {
	domain := emailDomain(lead.Email)
	company, err := s.client.GetOrCreateCompany(ctx, CompanyInput{
		Name:    domain,
		Website: domain,
	})
	if err != nil {
		return fmt.Errorf("syncing company for %s: %w", domain, err)
	}

	if _, err := s.client.GetOrCreatePerson(ctx, PersonInput{
		Email:     lead.Email,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
	}, company.ID.RecordID); err != nil {
		return fmt.Errorf("syncing person: %w", err)
	}

	list, err := s.client.GetList(ctx, s.listName)
	if err != nil {
		return err
	}
	entry, err := s.client.GetListEntry(ctx, list.ID.ListID, company.ID.RecordID)
	if err != nil {
		return err
	}
	if entry == nil {
		if err := s.client.AddRecordToList(ctx, list.ID.ListID, company.ID.RecordID, "companies"); err != nil {
			return fmt.Errorf("adding company to pipeline: %w", err)
		}
	}

	logger.Debug("lead synced to CRM",
		"lead_email", lead.Email, "campaign_id", campaign.ID, "company", domain)
	return nil
}

// SyncReply records a reply as a note on the person and advances the
// company's pipeline stage when the reply category signals interest.
func (s *Syncer) SyncReply(ctx context.Context, msg message.CanonicalMessage) error {
	if msg.Kind != message.KindReply {
		return nil
	}

	people, err := s.client.SearchRecords(ctx, "people", filter{
		"attribute": "email_addresses",
		"relation":  "contains",
		"value":     strings.ToLower(msg.From),
	})
	if err != nil {
		return err
	}
	if len(people) == 0 {
		logger.Warn("reply from unknown person, skipping CRM sync", "from_email", msg.From)
		return nil
	}
	person := people[0]

	title := fmt.Sprintf("Reply: %s", msg.Subject)
	content := msg.Reply.Text
	if content == "" {
		content = msg.Reply.HTML
	}
	if err := s.client.AddNote(ctx, "people", person.ID.RecordID, title, content); err != nil {
		return fmt.Errorf("adding reply note: %w", err)
	}

	if !interestedCategories[msg.ReplyCategory] {
		return nil
	}
	return s.advanceCompanyStage(ctx, person, StageInterestedReply)
}

func (s *Syncer) advanceCompanyStage(ctx context.Context, person Record, stage string) error {
	companies := person.Values["companies"]
	if len(companies) == 0 {
		logger.Warn("person has no company, pipeline stage unchanged")
		return nil
	}
	companyID := companies[0].TargetRecordID

	list, err := s.client.GetList(ctx, s.listName)
	if err != nil {
		return err
	}
	entry, err := s.client.GetListEntry(ctx, list.ID.ListID, companyID)
	if err != nil {
		return err
	}
	if entry == nil {
		logger.Warn("company not on pipeline list, stage unchanged", "record_id", companyID)
		return nil
	}

	statusID, err := s.client.StatusID(ctx, list.ID.ListID, stage)
	if err != nil {
		return err
	}
	if err := s.client.UpdateListEntryStatus(ctx, list.ID.ListID, entry.ID.EntryID, statusID); err != nil {
		return fmt.Errorf("moving pipeline stage: %w", err)
	}
	logger.Info("pipeline stage updated", "record_id", companyID, "stage", stage)
	return nil
}

func emailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return email
}
