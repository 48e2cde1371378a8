package report

import (
	"github.com/Hashira10/render/internal/models"
)

// NoData is the sentinel returned for leaderboard slots whose tally has
// no events behind it. Callers may relabel it via WithSentinel.
const NoData = "no data"

// Leaderboard names the top platform, recipient group and email subject
// by click volume and by credential-submission volume across the whole
// dataset.
type Leaderboard struct {
	TopClickPlatform      string `json:"top_click_platform"`
	TopCredentialPlatform string `json:"top_credential_platform"`
	TopClickGroup         string `json:"top_click_group"`
	TopCredentialGroup    string `json:"top_credential_group"`
	TopClickSubject       string `json:"top_click_subject"`
	TopCredentialSubject  string `json:"top_credential_subject"`
}

// WithSentinel returns a copy with every NoData slot replaced by label.
func (l Leaderboard) WithSentinel(label string) Leaderboard {
	for _, f := range []*string{
		&l.TopClickPlatform, &l.TopCredentialPlatform,
		&l.TopClickGroup, &l.TopCredentialGroup,
		&l.TopClickSubject, &l.TopCredentialSubject,
	} {
		if *f == NoData {
			*f = label
		}
	}
	return l
}

// tally counts labels while remembering first-insertion order. Picking
// the winner by scanning that order makes ties deterministic instead of
// depending on map iteration.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

// add increments key by n. Zero or negative contributions do not create
// a bucket: a slot with no events behind it stays out of the tally so
// the sentinel policy can see an empty mapping.
func (t *tally) add(key string, n int) {
	if n <= 0 {
		return
	}
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key] += n
}

// top returns the first-inserted key with the maximum count, or NoData
// when the tally is empty.
func (t *tally) top() string {
	best := NoData
	bestCount := -1
	for _, key := range t.order {
		if t.counts[key] > bestCount {
			best = key
			bestCount = t.counts[key]
		}
	}
	return best
}

// ComputeLeaderboards derives the cross-campaign rankings from the raw
// event collections. summaries must come from Aggregate over the same
// collections.
//
// Platforms tally one per log row (an absent platform counts as
// "unknown"); subjects tally one per log row that resolves to a known
// message, rows referencing unknown message IDs are skipped; groups
// tally per campaign, summing the campaign's unique-user count into the
// bucket named after the group of the campaign's first message.
func ComputeLeaderboards(messages []*models.Message, clicks []*models.ClickLog, creds []*models.CredentialLog, summaries map[string]CampaignSummary) Leaderboard {
	msgByID := make(map[string]*models.Message, len(messages))
	for _, m := range messages {
		if m != nil {
			msgByID[m.ID] = m
		}
	}

	clickPlatforms := newTally()
	clickSubjects := newTally()
	for _, l := range clicks {
		if l == nil {
			continue
		}
		clickPlatforms.add(platformOf(l.Platform), 1)
		if m, ok := msgByID[l.MessageID]; ok {
			clickSubjects.add(m.Subject, 1)
		}
	}

	credPlatforms := newTally()
	credSubjects := newTally()
	for _, l := range creds {
		if l == nil {
			continue
		}
		credPlatforms.add(platformOf(l.Platform), 1)
		if m, ok := msgByID[l.MessageID]; ok {
			credSubjects.add(m.Subject, 1)
		}
	}

	clickGroups := newTally()
	credGroups := newTally()
	seen := make(map[string]struct{}, len(summaries))
	for _, m := range messages {
		if m == nil {
			continue
		}
		if _, done := seen[m.CampaignName]; done {
			continue
		}
		seen[m.CampaignName] = struct{}{}
		s := summaries[m.CampaignName]
		clickGroups.add(m.RecipientGroup.Name, s.UniqueClickUsers)
		credGroups.add(m.RecipientGroup.Name, s.UniqueCredentialUsers)
	}

	return Leaderboard{
		TopClickPlatform:      clickPlatforms.top(),
		TopCredentialPlatform: credPlatforms.top(),
		TopClickGroup:         clickGroups.top(),
		TopCredentialGroup:    credGroups.top(),
		TopClickSubject:       clickSubjects.top(),
		TopCredentialSubject:  credSubjects.top(),
	}
}

func platformOf(p string) string {
	if p == "" {
		return models.PlatformUnknown
	}
	return p
}
