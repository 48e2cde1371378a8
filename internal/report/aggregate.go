package report

import (
	"github.com/Hashira10/render/internal/models"
)

// CampaignSummary holds the derived statistics for one campaign. It is
// rebuilt from scratch on every aggregation pass and never mutated
// afterwards; CampaignID is the ID of the first message observed for
// the campaign name.
type CampaignSummary struct {
	CampaignID            string `json:"campaign_id"`
	Name                  string `json:"name"`
	TotalRecipients       int    `json:"total_recipients"`
	UniqueClickUsers      int    `json:"unique_click_users"`
	UniqueCredentialUsers int    `json:"unique_credential_users"`
}

// actorKey identifies one recipient acting on one specific message. An
// event counts toward a campaign only when both halves match: a
// recipient who belongs to the group but clicked a different message
// must not be counted.
type actorKey struct {
	messageID   string
	recipientID string
}

// indexClickActors collapses click logs into the set of (message,
// recipient) pairs that have at least one event. Logs with no
// attributed recipient, or a recipient without an ID, are skipped so
// they can never merge into a shared empty-ID bucket.
func indexClickActors(logs []*models.ClickLog) map[actorKey]struct{} {
	idx := make(map[actorKey]struct{}, len(logs))
	for _, l := range logs {
		if l == nil || l.Recipient == nil || l.Recipient.ID == "" {
			continue
		}
		idx[actorKey{l.MessageID, l.Recipient.ID}] = struct{}{}
	}
	return idx
}

func indexCredentialActors(logs []*models.CredentialLog) map[actorKey]struct{} {
	idx := make(map[actorKey]struct{}, len(logs))
	for _, l := range logs {
		if l == nil || l.Recipient == nil || l.Recipient.ID == "" {
			continue
		}
		idx[actorKey{l.MessageID, l.Recipient.ID}] = struct{}{}
	}
	return idx
}

// Aggregate groups messages by campaign name and derives per-campaign
// statistics from the three event collections. It is a pure function of
// its inputs: re-running it on the same snapshots yields identical
// output, and it is safe to call concurrently.
//
// TotalRecipients sums each message's recipient list in full; recipients
// are deliberately not deduplicated across messages sharing a campaign
// name. The unique-user counts, by contrast, count distinct recipient
// IDs per campaign regardless of how many events or messages they
// appear in.
func Aggregate(messages []*models.Message, clicks []*models.ClickLog, creds []*models.CredentialLog) map[string]CampaignSummary {
	clickIdx := indexClickActors(clicks)
	credIdx := indexCredentialActors(creds)

	type campaignAcc struct {
		id         string
		total      int
		clickers   map[string]struct{}
		submitters map[string]struct{}
	}
	accs := make(map[string]*campaignAcc)

	for _, m := range messages {
		if m == nil {
			continue
		}
		// Any campaign name is a valid grouping key, including the
		// empty string.
		acc, ok := accs[m.CampaignName]
		if !ok {
			acc = &campaignAcc{
				id:         m.ID,
				clickers:   make(map[string]struct{}),
				submitters: make(map[string]struct{}),
			}
			accs[m.CampaignName] = acc
		}
		acc.total += len(m.Recipients)

		for _, r := range m.Recipients {
			if r.ID == "" {
				continue
			}
			key := actorKey{m.ID, r.ID}
			if _, clicked := clickIdx[key]; clicked {
				acc.clickers[r.ID] = struct{}{}
			}
			if _, submitted := credIdx[key]; submitted {
				acc.submitters[r.ID] = struct{}{}
			}
		}
	}

	summaries := make(map[string]CampaignSummary, len(accs))
	for name, acc := range accs {
		summaries[name] = CampaignSummary{
			CampaignID:            acc.id,
			Name:                  name,
			TotalRecipients:       acc.total,
			UniqueClickUsers:      len(acc.clickers),
			UniqueCredentialUsers: len(acc.submitters),
		}
	}
	return summaries
}
