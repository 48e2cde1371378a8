package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hashira10/render/internal/models"
)

// PostgresStore implements the repository interfaces on a pgx pool.
// Group membership and message recipient snapshots are stored as JSONB
// columns: the console reads them back whole, never row by row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the tables the store needs. Intended for development
// and tests; production deployments run migrations out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS recipients (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	position   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recipient_groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	recipients JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	campaign_name   TEXT NOT NULL,
	subject         TEXT NOT NULL,
	recipient_group JSONB NOT NULL,
	recipients      JSONB NOT NULL DEFAULT '[]',
	sent_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS click_logs (
	id          TEXT PRIMARY KEY,
	message_id  TEXT NOT NULL,
	recipient   JSONB,
	platform    TEXT NOT NULL DEFAULT 'unknown',
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	geo_country TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credential_logs (
	id          TEXT PRIMARY KEY,
	message_id  TEXT NOT NULL,
	recipient   JSONB,
	platform    TEXT NOT NULL DEFAULT 'unknown',
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	geo_country TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL DEFAULT now(),
	data        JSONB
);

CREATE INDEX IF NOT EXISTS idx_click_logs_message ON click_logs (message_id);
CREATE INDEX IF NOT EXISTS idx_credential_logs_message ON credential_logs (message_id);
`

// InitSchema applies the schema to the connected database.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// ---- Recipients ----

func (s *PostgresStore) ListRecipients(ctx context.Context) ([]*models.Recipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, first_name, last_name, position
		FROM recipients ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var res []*models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.FirstName, &r.LastName, &r.Position); err != nil {
			return nil, err
		}
		res = append(res, &r)
	}
	return res, rows.Err()
}

func (s *PostgresStore) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	var r models.Recipient
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, position
		FROM recipients WHERE id = $1
	`, id).Scan(&r.ID, &r.Email, &r.FirstName, &r.LastName, &r.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) UpsertRecipient(ctx context.Context, r *models.Recipient) error {
	if r == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recipients (id, email, first_name, last_name, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			position = EXCLUDED.position
	`, r.ID, r.Email, r.FirstName, r.LastName, r.Position)
	if err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRecipient(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM recipients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}
	return nil
}

// ---- Groups ----

func (s *PostgresStore) ListGroups(ctx context.Context) ([]*models.RecipientGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, recipients FROM recipient_groups ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var res []*models.RecipientGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*models.RecipientGroup, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, recipients FROM recipient_groups WHERE id = $1
	`, id)
	g, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) UpsertGroup(ctx context.Context, g *models.RecipientGroup) error {
	if g == nil {
		return nil
	}
	// Members must stay resolvable by ID through the recipients table;
	// the tracking endpoints attribute events via GetRecipient.
	for i := range g.Recipients {
		if g.Recipients[i].ID == "" {
			continue
		}
		if err := s.UpsertRecipient(ctx, &g.Recipients[i]); err != nil {
			return err
		}
	}
	members, err := json.Marshal(g.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode group members: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO recipient_groups (id, name, recipients)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			recipients = EXCLUDED.recipients
	`, g.ID, g.Name, members)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGroup(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM recipient_groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddRecipient(ctx context.Context, groupID string, r models.Recipient) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	for _, existing := range g.Recipients {
		if existing.ID == r.ID {
			return nil
		}
	}
	g.Recipients = append(g.Recipients, r)
	return s.UpsertGroup(ctx, g)
}

// ---- Messages ----

func (s *PostgresStore) ListMessages(ctx context.Context) ([]*models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, campaign_name, subject, recipient_group, recipients, sent_at
		FROM messages ORDER BY sent_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var res []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, campaign_name, subject, recipient_group, recipients, sent_at
		FROM messages WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, m *models.Message) error {
	if m == nil {
		return nil
	}
	group, err := json.Marshal(m.RecipientGroup)
	if err != nil {
		return fmt.Errorf("failed to encode recipient group: %w", err)
	}
	recipients, err := json.Marshal(m.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, campaign_name, subject, recipient_group, recipients, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.CampaignName, m.Subject, group, recipients, m.SentAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ---- Event logs ----

func (s *PostgresStore) SaveClickLog(ctx context.Context, log *models.ClickLog) error {
	if log == nil {
		return nil
	}
	recipient, err := marshalRecipient(log.Recipient)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO click_logs (id, message_id, recipient, platform, ip_address, user_agent, geo_country, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, log.ID, log.MessageID, recipient, log.Platform, log.IPAddress, log.UserAgent, log.GeoCountry, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save click log: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveCredentialLog(ctx context.Context, log *models.CredentialLog) error {
	if log == nil {
		return nil
	}
	recipient, err := marshalRecipient(log.Recipient)
	if err != nil {
		return err
	}
	data, err := json.Marshal(log.Data)
	if err != nil {
		return fmt.Errorf("failed to encode credential data: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO credential_logs (id, message_id, recipient, platform, ip_address, user_agent, geo_country, timestamp, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, log.ID, log.MessageID, recipient, log.Platform, log.IPAddress, log.UserAgent, log.GeoCountry, log.Timestamp, data)
	if err != nil {
		return fmt.Errorf("failed to save credential log: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasClick(ctx context.Context, recipientID, messageID, platform string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM click_logs
			WHERE message_id = $1 AND platform = $2 AND recipient->>'id' = $3
		)
	`, messageID, platform, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check click: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListClickLogs(ctx context.Context) ([]*models.ClickLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, recipient, platform, ip_address, user_agent, geo_country, timestamp
		FROM click_logs ORDER BY timestamp, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list click logs: %w", err)
	}
	defer rows.Close()

	var res []*models.ClickLog
	for rows.Next() {
		var c models.ClickLog
		var recipient []byte
		if err := rows.Scan(&c.ID, &c.MessageID, &recipient, &c.Platform, &c.IPAddress, &c.UserAgent, &c.GeoCountry, &c.Timestamp); err != nil {
			return nil, err
		}
		if c.Recipient, err = unmarshalRecipient(recipient); err != nil {
			return nil, err
		}
		res = append(res, &c)
	}
	return res, rows.Err()
}

func (s *PostgresStore) ListCredentialLogs(ctx context.Context) ([]*models.CredentialLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, recipient, platform, ip_address, user_agent, geo_country, timestamp, data
		FROM credential_logs ORDER BY timestamp, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credential logs: %w", err)
	}
	defer rows.Close()

	var res []*models.CredentialLog
	for rows.Next() {
		var c models.CredentialLog
		var recipient, data []byte
		if err := rows.Scan(&c.ID, &c.MessageID, &recipient, &c.Platform, &c.IPAddress, &c.UserAgent, &c.GeoCountry, &c.Timestamp, &data); err != nil {
			return nil, err
		}
		if c.Recipient, err = unmarshalRecipient(recipient); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &c.Data); err != nil {
				return nil, fmt.Errorf("failed to decode credential data: %w", err)
			}
		}
		res = append(res, &c)
	}
	return res, rows.Err()
}

// ---- Scan helpers ----

func scanGroup(row pgx.Row) (*models.RecipientGroup, error) {
	var g models.RecipientGroup
	var members []byte
	if err := row.Scan(&g.ID, &g.Name, &members); err != nil {
		return nil, err
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &g.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode group members: %w", err)
		}
	}
	return &g, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var group, recipients []byte
	if err := row.Scan(&m.ID, &m.CampaignName, &m.Subject, &group, &recipients, &m.SentAt); err != nil {
		return nil, err
	}
	if len(group) > 0 {
		if err := json.Unmarshal(group, &m.RecipientGroup); err != nil {
			return nil, fmt.Errorf("failed to decode recipient group: %w", err)
		}
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &m.Recipients); err != nil {
			return nil, fmt.Errorf("failed to decode recipients: %w", err)
		}
	}
	return &m, nil
}

func marshalRecipient(r *models.Recipient) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipient: %w", err)
	}
	return b, nil
}

func unmarshalRecipient(b []byte) (*models.Recipient, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var r models.Recipient
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("failed to decode recipient: %w", err)
	}
	return &r, nil
}
