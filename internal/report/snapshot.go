package report

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Hashira10/render/internal/models"
)

// ErrDataUnavailable wraps any failure of the three-way snapshot fetch.
// The engine never aggregates over partial data: if one collection
// cannot be read, the whole snapshot is abandoned and the caller
// retries.
var ErrDataUnavailable = errors.New("campaign data unavailable")

// Source provides the three event collections the engine consumes. The
// storage layer satisfies it directly.
type Source interface {
	ListMessages(ctx context.Context) ([]*models.Message, error)
	ListClickLogs(ctx context.Context) ([]*models.ClickLog, error)
	ListCredentialLogs(ctx context.Context) ([]*models.CredentialLog, error)
}

// Snapshot is an immutable view of the three collections, taken at one
// logical join point.
type Snapshot struct {
	Messages       []*models.Message
	ClickLogs      []*models.ClickLog
	CredentialLogs []*models.CredentialLog
}

// LoadSnapshot fetches the three collections concurrently and joins
// them. Any single failure fails the whole read; nothing is cached
// across retries.
func LoadSnapshot(ctx context.Context, src Source) (*Snapshot, error) {
	var snap Snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if snap.Messages, err = src.ListMessages(ctx); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.ClickLogs, err = src.ListClickLogs(ctx); err != nil {
			return fmt.Errorf("click logs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.CredentialLogs, err = src.ListCredentialLogs(ctx); err != nil {
			return fmt.Errorf("credential logs: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return &snap, nil
}
