package storage

import (
	"context"
	"sync"

	"github.com/Hashira10/render/internal/models"
)

// InMemoryStore implements every repository interface in memory. It is
// not durable and resets on process restart; it backs tests and
// database-less development runs. All methods are safe for concurrent
// use and store copies so callers cannot mutate what was saved.
type InMemoryStore struct {
	mu         sync.RWMutex
	recipients map[string]*models.Recipient
	groups     map[string]*models.RecipientGroup
	messages   map[string]*models.Message
	clicks     []*models.ClickLog
	creds      []*models.CredentialLog

	// Insertion order for deterministic listings.
	recipientOrder []string
	groupOrder     []string
	messageOrder   []string
}

// NewInMemoryStore creates a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		recipients: make(map[string]*models.Recipient),
		groups:     make(map[string]*models.RecipientGroup),
		messages:   make(map[string]*models.Message),
	}
}

// ---- Recipients ----

func (s *InMemoryStore) ListRecipients(ctx context.Context) ([]*models.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.Recipient, 0, len(s.recipientOrder))
	for _, id := range s.recipientOrder {
		if r, ok := s.recipients[id]; ok {
			cp := *r
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *InMemoryStore) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.recipients[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertRecipient(ctx context.Context, r *models.Recipient) error {
	if r == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipients[r.ID]; !ok {
		s.recipientOrder = append(s.recipientOrder, r.ID)
	}
	cp := *r
	s.recipients[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) DeleteRecipient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recipients, id)
	s.recipientOrder = removeID(s.recipientOrder, id)
	return nil
}

// ---- Groups ----

func (s *InMemoryStore) ListGroups(ctx context.Context) ([]*models.RecipientGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.RecipientGroup, 0, len(s.groupOrder))
	for _, id := range s.groupOrder {
		if g, ok := s.groups[id]; ok {
			res = append(res, copyGroup(g))
		}
	}
	return res, nil
}

func (s *InMemoryStore) GetGroup(ctx context.Context, id string) (*models.RecipientGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.groups[id]; ok {
		return copyGroup(g), nil
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertGroup(ctx context.Context, g *models.RecipientGroup) error {
	if g == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		s.groupOrder = append(s.groupOrder, g.ID)
	}
	s.groups[g.ID] = copyGroup(g)
	for _, r := range g.Recipients {
		s.registerRecipient(r)
	}
	return nil
}

func (s *InMemoryStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	s.groupOrder = removeID(s.groupOrder, id)
	return nil
}

func (s *InMemoryStore) AddRecipient(ctx context.Context, groupID string, r models.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	for _, existing := range g.Recipients {
		if existing.ID == r.ID {
			return nil
		}
	}
	g.Recipients = append(g.Recipients, r)
	s.registerRecipient(r)
	return nil
}

// registerRecipient stores a group member under its own ID so the
// tracking endpoints can resolve it. Caller must hold the write lock.
func (s *InMemoryStore) registerRecipient(r models.Recipient) {
	if r.ID == "" {
		return
	}
	if _, ok := s.recipients[r.ID]; !ok {
		s.recipientOrder = append(s.recipientOrder, r.ID)
	}
	cp := r
	s.recipients[r.ID] = &cp
}

// ---- Messages ----

func (s *InMemoryStore) ListMessages(ctx context.Context) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.Message, 0, len(s.messageOrder))
	for _, id := range s.messageOrder {
		if m, ok := s.messages[id]; ok {
			res = append(res, copyMessage(m))
		}
	}
	return res, nil
}

func (s *InMemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.messages[id]; ok {
		return copyMessage(m), nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveMessage(ctx context.Context, m *models.Message) error {
	if m == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; !ok {
		s.messageOrder = append(s.messageOrder, m.ID)
	}
	s.messages[m.ID] = copyMessage(m)
	return nil
}

// ---- Event logs ----

func (s *InMemoryStore) SaveClickLog(ctx context.Context, log *models.ClickLog) error {
	if log == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, copyClickLog(log))
	return nil
}

func (s *InMemoryStore) SaveCredentialLog(ctx context.Context, log *models.CredentialLog) error {
	if log == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, copyCredentialLog(log))
	return nil
}

func (s *InMemoryStore) HasClick(ctx context.Context, recipientID, messageID, platform string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clicks {
		if c.Recipient != nil && c.Recipient.ID == recipientID && c.MessageID == messageID && c.Platform == platform {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListClickLogs(ctx context.Context) ([]*models.ClickLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.ClickLog, 0, len(s.clicks))
	for _, c := range s.clicks {
		res = append(res, copyClickLog(c))
	}
	return res, nil
}

func (s *InMemoryStore) ListCredentialLogs(ctx context.Context) ([]*models.CredentialLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*models.CredentialLog, 0, len(s.creds))
	for _, c := range s.creds {
		res = append(res, copyCredentialLog(c))
	}
	return res, nil
}

// ---- Copy helpers ----

func copyGroup(g *models.RecipientGroup) *models.RecipientGroup {
	cp := *g
	cp.Recipients = append([]models.Recipient(nil), g.Recipients...)
	return &cp
}

func copyMessage(m *models.Message) *models.Message {
	cp := *m
	cp.Recipients = append([]models.Recipient(nil), m.Recipients...)
	cp.RecipientGroup.Recipients = append([]models.Recipient(nil), m.RecipientGroup.Recipients...)
	return &cp
}

func copyClickLog(c *models.ClickLog) *models.ClickLog {
	cp := *c
	if c.Recipient != nil {
		r := *c.Recipient
		cp.Recipient = &r
	}
	return &cp
}

func copyCredentialLog(c *models.CredentialLog) *models.CredentialLog {
	cp := *c
	if c.Recipient != nil {
		r := *c.Recipient
		cp.Recipient = &r
	}
	if c.Data != nil {
		cp.Data = make(map[string]string, len(c.Data))
		for k, v := range c.Data {
			cp.Data[k] = v
		}
	}
	return &cp
}

func removeID(ids []string, id string) []string {
	res := ids[:0]
	for _, v := range ids {
		if v != id {
			res = append(res, v)
		}
	}
	return res
}
