package export

import (
	"context"
	"fmt"

	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// CampaignReport summarizes one campaign's event inventory against the
// upload tracker — the "what is still missing" view.
type CampaignReport struct {
	CampaignID int64
	Name       string
	ClientID   string
	Leads      int
	Events     int
	Tracked    int
}

// Missing returns the number of events that have not been uploaded yet.
func (r CampaignReport) Missing() int { return r.Events - r.Tracked }

// Analyze walks campaigns, leads, and histories without uploading anything
// and reports per-campaign event counts versus tracked fingerprints. An
// empty clientID analyzes every campaign visible to the API key.
func (e *Exporter) Analyze(ctx context.Context, clientID string) ([]CampaignReport, error) {
	campaigns, err := e.api.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	var reports []CampaignReport
	for _, c := range campaigns {
		if clientID != "" && c.ClientID.String() != clientID {
			continue
		}

		report := CampaignReport{CampaignID: c.ID, Name: c.Name, ClientID: c.ClientID.String()}
		leads := e.api.ListLeads(ctx, c.ID)
		report.Leads = len(leads)

		for _, entry := range leads {
			history, err := e.api.GetMessageHistory(ctx, c.ID, entry.Lead.ID)
			if err != nil {
				logger.Warn("message history fetch failed during analysis",
					"campaign_id", c.ID, "lead_id", entry.Lead.ID, "error", err)
				continue
			}
			for _, ev := range history.History {
				report.Events++
				if e.tracker.Contains(Fingerprint(c.ID, entry.Lead.ID, ev.Time, ev.Subject)) {
					report.Tracked++
				}
			}
		}

		reports = append(reports, report)
	}

	return reports, nil
}
