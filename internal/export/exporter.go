// Package export drives the bulk walk over campaigns, leads, and event
// history, converting each event to a canonical email, deduplicating via
// the upload tracker, and handing new messages to the mailbox collaborator.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/smartlead-export/internal/gmail"
	"github.com/ignite/smartlead-export/internal/message"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
	"github.com/ignite/smartlead-export/internal/smartlead"
	"github.com/ignite/smartlead-export/internal/tracker"
)

// API is the slice of the Smartlead client the orchestrator depends on.
type API interface {
	ListCampaigns(ctx context.Context) ([]smartlead.Campaign, error)
	GetCampaign(ctx context.Context, campaignID int64) (*smartlead.Campaign, error)
	ListLeads(ctx context.Context, campaignID int64) []smartlead.LeadEntry
	GetMessageHistory(ctx context.Context, campaignID, leadID int64) (*smartlead.MessageHistory, error)
}

// Uploader hands an encoded payload to the mailbox service.
type Uploader interface {
	UploadRaw(ctx context.Context, raw string, kind message.Kind) (*gmail.UploadResult, error)
}

// ItemError records one failed item with enough context to chase it down.
type ItemError struct {
	Recipient string
	Err       string
}

// Result aggregates the counters for one export run. Errors carries both
// per-message upload failures and per-campaign hard failures.
type Result struct {
	Total    int
	Uploaded int
	Skipped  int
	Failed   int
	Errors   []ItemError
}

func (r *Result) merge(other *Result) {
	r.Total += other.Total
	r.Uploaded += other.Uploaded
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// Exporter orchestrates export runs. Execution is sequential by design:
// the mailbox and campaign APIs are both rate limited, and the tracker
// assumes a single exporter process.
type Exporter struct {
	api         API
	uploader    Uploader
	tracker     *tracker.Tracker
	uploadDelay time.Duration

	// sleep paces uploads; swappable for tests.
	sleep func(time.Duration)
}

// New creates an Exporter.
func New(api API, uploader Uploader, tr *tracker.Tracker, uploadDelay time.Duration) *Exporter {
	return &Exporter{
		api:         api,
		uploader:    uploader,
		tracker:     tr,
		uploadDelay: uploadDelay,
		sleep:       time.Sleep,
	}
}

// SetSleep replaces the inter-upload sleep function (useful for testing).
func (e *Exporter) SetSleep(fn func(time.Duration)) { e.sleep = fn }

// ExportCampaign exports every message of one campaign. A campaign whose
// metadata cannot be fetched fails as a whole; anything below that degrades
// per lead or per message without aborting the batch.
func (e *Exporter) ExportCampaign(ctx context.Context, campaignID int64, dryRun bool) (*Result, error) {
	campaign, err := e.api.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("fetching campaign %d: %w", campaignID, err)
	}
	logger.Info("starting campaign export",
		"campaign_id", campaign.ID, "campaign_name", campaign.Name, "dry_run", dryRun)

	leads := e.api.ListLeads(ctx, campaign.ID)
	logger.Info("campaign leads fetched", "campaign_id", campaign.ID, "leads", len(leads))

	res := &Result{}
	for _, entry := range leads {
		lead := entry.Lead

		history, err := e.api.GetMessageHistory(ctx, campaign.ID, lead.ID)
		if err != nil {
			// Treated as zero events for this lead; the campaign goes on.
			logger.Warn("message history fetch failed, skipping lead",
				"campaign_id", campaign.ID, "lead_id", lead.ID, "lead_email", lead.Email, "error", err)
			continue
		}

		for _, ev := range history.History {
			res.Total++

			fp := Fingerprint(campaign.ID, lead.ID, ev.Time, ev.Subject)
			if e.tracker.Contains(fp) {
				res.Skipped++
				continue
			}

			if dryRun {
				res.Uploaded++
				logger.Debug("would upload", "lead_email", lead.Email, "subject", ev.Subject)
				continue
			}

			msg := message.Normalize(ev, campaign, lead, history.From)
			raw, err := message.Encode(msg)
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, ItemError{Recipient: msg.To, Err: err.Error()})
				logger.Error("message encoding failed",
					"lead_email", lead.Email, "subject", ev.Subject, "error", err)
				continue
			}

			if _, err := e.uploader.UploadRaw(ctx, raw, msg.Kind); err != nil {
				res.Failed++
				res.Errors = append(res.Errors, ItemError{Recipient: msg.To, Err: err.Error()})
				logger.Error("upload failed",
					"lead_email", lead.Email, "subject", ev.Subject, "error", err)
				continue
			}

			e.tracker.Record(ctx, fp)
			res.Uploaded++
			e.sleep(e.uploadDelay)
		}
	}

	if !dryRun {
		if err := e.tracker.Flush(ctx); err != nil {
			logger.Error("final tracking flush failed", "campaign_id", campaign.ID, "error", err)
		}
	}

	logger.Info("campaign export finished",
		"campaign_id", campaign.ID, "total", res.Total, "uploaded", res.Uploaded,
		"skipped", res.Skipped, "failed", res.Failed, "dry_run", dryRun)
	return res, nil
}

// ExportClient exports every campaign belonging to a client. Client ids are
// compared as strings: the API mixes numeric and string forms and an integer
// comparison silently matches nothing.
func (e *Exporter) ExportClient(ctx context.Context, clientID string, dryRun bool) (*Result, error) {
	campaigns, err := e.api.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	total := &Result{}
	matched := 0
	for _, c := range campaigns {
		if c.ClientID.String() != clientID {
			continue
		}
		matched++

		res, err := e.ExportCampaign(ctx, c.ID, dryRun)
		if err != nil {
			// One campaign's hard failure never aborts the rest.
			total.Errors = append(total.Errors, ItemError{
				Recipient: fmt.Sprintf("campaign %d (%s)", c.ID, c.Name),
				Err:       err.Error(),
			})
			logger.Error("campaign export failed", "campaign_id", c.ID, "error", err)
			continue
		}
		total.merge(res)
	}

	logger.Info("client export finished",
		"client_id", clientID, "campaigns", matched, "total", total.Total,
		"uploaded", total.Uploaded, "skipped", total.Skipped, "failed", total.Failed)
	return total, nil
}
