package storage

import (
	"context"
	"errors"

	"github.com/Hashira10/render/internal/models"
)

// ErrGroupNotFound is returned when a membership operation references a
// group that does not exist.
var ErrGroupNotFound = errors.New("recipient group not found")

// RecipientRepo defines CRUD operations for recipients.
type RecipientRepo interface {
	ListRecipients(ctx context.Context) ([]*models.Recipient, error)
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
	UpsertRecipient(ctx context.Context, r *models.Recipient) error
	DeleteRecipient(ctx context.Context, id string) error
}

// GroupRepo defines operations for recipient groups. Membership lives on
// the group; messages copy it at send time. Writes that add members also
// register each member with the recipient repo, keeping them resolvable
// by ID for event attribution.
type GroupRepo interface {
	ListGroups(ctx context.Context) ([]*models.RecipientGroup, error)
	GetGroup(ctx context.Context, id string) (*models.RecipientGroup, error)
	UpsertGroup(ctx context.Context, g *models.RecipientGroup) error
	DeleteGroup(ctx context.Context, id string) error
	AddRecipient(ctx context.Context, groupID string, r models.Recipient) error
}

// MessageRepo defines operations for sent messages.
type MessageRepo interface {
	// ListMessages returns all messages in a stable order (oldest
	// first). The report engine depends on this order for its
	// deterministic tie-breaks.
	ListMessages(ctx context.Context) ([]*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	SaveMessage(ctx context.Context, m *models.Message) error
}

// EventLogStore provides storage for click and credential-submission
// events. The report engine only ever reads full snapshots via the List
// methods; it never consumes a partial stream.
type EventLogStore interface {
	SaveClickLog(ctx context.Context, log *models.ClickLog) error
	SaveCredentialLog(ctx context.Context, log *models.CredentialLog) error

	// HasClick reports whether a click for this recipient, message and
	// platform combination was already recorded. The track endpoint
	// keeps one row per combination, matching repeated opens of the
	// same mail.
	HasClick(ctx context.Context, recipientID, messageID, platform string) (bool, error)

	ListClickLogs(ctx context.Context) ([]*models.ClickLog, error)
	ListCredentialLogs(ctx context.Context) ([]*models.CredentialLog, error)
}
