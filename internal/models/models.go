package models

import (
	"errors"
	"strings"
	"time"
)

// Recipient is a single simulated-phishing target. Identity is the ID:
// two recipients are the same actor iff their IDs match.
type Recipient struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position,omitempty"`
}

// FullName returns the display name for a recipient.
func (r Recipient) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func (r *Recipient) Validate() error {
	if r.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// RecipientGroup is a named roster of recipients. Groups are referenced
// by messages, not copied into them; a message records the membership
// as it stood at send time in its own Recipients slice.
type RecipientGroup struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Recipients []Recipient `json:"recipients"`
}

func (g *RecipientGroup) Validate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Message is one sent campaign mail-out. A campaign has no entity of its
// own: it is identified by CampaignName, and several messages sharing a
// name are merged into one aggregate by the report engine.
type Message struct {
	ID             string         `json:"id"`
	CampaignName   string         `json:"campaign_name"`
	Subject        string         `json:"subject"`
	RecipientGroup RecipientGroup `json:"recipient_group"`

	// Recipients is the group membership captured when the message was
	// sent. TotalRecipients sums these lists without deduplication.
	Recipients []Recipient `json:"recipients"`

	SentAt time.Time `json:"sent_at"`
}

func (m *Message) Validate() error {
	if m.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}

// Platform labels for tracked pages. Free-form strings on the wire;
// anything unrecognized tallies under PlatformUnknown.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformGoogle    = "google"
	PlatformMicrosoft = "microsoft"
	PlatformUnknown   = "unknown"
)

// ClickLog records one link-open event. Recipient may be nil when the
// click could not be attributed; such rows are kept for display but
// never counted by the aggregator. A recipient clicking the same link
// several times produces several rows.
type ClickLog struct {
	ID         string     `json:"id"`
	MessageID  string     `json:"message_id"`
	Recipient  *Recipient `json:"recipient"`
	Platform   string     `json:"platform"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	GeoCountry string     `json:"geo_country,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// CredentialLog records one credential submission on a spoofed login
// page. Data holds the submitted form fields (typically email and
// password) keyed by field name.
type CredentialLog struct {
	ID         string            `json:"id"`
	MessageID  string            `json:"message_id"`
	Recipient  *Recipient        `json:"recipient"`
	Platform   string            `json:"platform"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	GeoCountry string            `json:"geo_country,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Data       map[string]string `json:"data,omitempty"`
}
