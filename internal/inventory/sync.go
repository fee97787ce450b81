package inventory

import (
	"context"
	"fmt"
	"time"

	"stockroom/internal"
	"stockroom/internal/config"
	"stockroom/internal/logger"
	"stockroom/internal/storage"
)

type SyncService struct {
	db     *storage.DB
	client *Client
	log    *logger.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, log *logger.Logger) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), log: log}
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	items, err := s.client.ScrollItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("scroll items: %w", err)
	}
	if err := s.store(items); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("inventory.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	return len(items), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context, mode string) (int, error) {
	items, err := s.client.IncrementalItems(ctx, mode)
	if err != nil {
		return 0, fmt.Errorf("incremental items mode=%s: %w", mode, err)
	}
	if len(items) > 0 {
		if err := s.store(items); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("inventory.last_incremental_sync."+mode, time.Now().UTC().Format(time.RFC3339))
	return len(items), nil
}

func (s *SyncService) store(items []internal.ItemRecord) error {
	skipped, err := s.db.UpsertItems(items)
	if err != nil {
		return fmt.Errorf("store items: %w", err)
	}
	if skipped > 0 {
		s.log.Warn("items saved without equipment index", "count", skipped)
	}
	s.log.Info("items stored", "count", len(items))
	return nil
}
