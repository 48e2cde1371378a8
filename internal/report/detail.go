package report

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Hashira10/render/internal/models"
)

// NotFoundError reports a lookup of a campaign name with no entry in the
// aggregate. It is an expected, user-reachable outcome (stale links,
// direct navigation), distinct from a data-access failure.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("campaign %q not found", e.Name)
}

// CampaignDetail is a campaign's summary plus the raw events belonging
// to its representative message and the derived click/submission rates.
// Rates are ratios in [0,1]; when the campaign has zero recipients they
// are NaN and serialize as null.
type CampaignDetail struct {
	CampaignSummary
	ClickEvents      []*models.ClickLog      `json:"click_events"`
	CredentialEvents []*models.CredentialLog `json:"credential_events"`
	ClickRate        float64                 `json:"click_rate"`
	CredentialRate   float64                 `json:"credential_rate"`
}

// MarshalJSON renders NaN rates as null, since JSON has no NaN.
func (d CampaignDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CampaignSummary
		ClickEvents      []*models.ClickLog      `json:"click_events"`
		CredentialEvents []*models.CredentialLog `json:"credential_events"`
		ClickRate        *float64                `json:"click_rate"`
		CredentialRate   *float64                `json:"credential_rate"`
	}{
		CampaignSummary:  d.CampaignSummary,
		ClickEvents:      d.ClickEvents,
		CredentialEvents: d.CredentialEvents,
		ClickRate:        rateOrNull(d.ClickRate),
		CredentialRate:   rateOrNull(d.CredentialRate),
	})
}

func rateOrNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// ResolveCampaign looks up one campaign in a previously built aggregate
// and attaches the click and credential events whose message ID equals
// the campaign's representative message. An unknown name yields a
// *NotFoundError, never a panic.
func ResolveCampaign(name string, summaries map[string]CampaignSummary, clicks []*models.ClickLog, creds []*models.CredentialLog) (*CampaignDetail, error) {
	summary, ok := summaries[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	detail := &CampaignDetail{
		CampaignSummary:  summary,
		ClickEvents:      make([]*models.ClickLog, 0),
		CredentialEvents: make([]*models.CredentialLog, 0),
		ClickRate:        rate(summary.UniqueClickUsers, summary.TotalRecipients),
		CredentialRate:   rate(summary.UniqueCredentialUsers, summary.TotalRecipients),
	}
	for _, l := range clicks {
		if l != nil && l.MessageID == summary.CampaignID {
			detail.ClickEvents = append(detail.ClickEvents, l)
		}
	}
	for _, l := range creds {
		if l != nil && l.MessageID == summary.CampaignID {
			detail.CredentialEvents = append(detail.CredentialEvents, l)
		}
	}
	return detail, nil
}

// rate divides users by total, returning NaN for an empty campaign
// instead of dividing by zero.
func rate(users, total int) float64 {
	if total == 0 {
		return math.NaN()
	}
	return float64(users) / float64(total)
}
