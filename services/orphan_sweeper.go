package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/storage"
)

const sweepBatch = 100

// OrphanSweeper retries deletion of attachment blobs that lost their post
// reference but could not be removed inline.
type OrphanSweeper struct {
	db     *gorm.DB
	store  storage.AttachmentStore
	logger *zap.Logger
}

// NewOrphanSweeper creates a sweeper over the orphan_attachments queue.
func NewOrphanSweeper(db *gorm.DB, store storage.AttachmentStore, logger *zap.Logger) *OrphanSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanSweeper{db: db, store: store, logger: logger.Named("orphan_sweeper")}
}

// Start launches a background loop that sweeps every interval until ctx is
// cancelled.
func (s *OrphanSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.SweepOnce(ctx); err != nil {
					s.logger.Warn("sweep failed", zap.Error(err))
				} else if n > 0 {
					s.logger.Info("orphan attachments removed", zap.Int("count", n))
				}
			}
		}
	}()
}

// SweepOnce processes one batch of queued orphans and returns how many were
// removed.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int, error) {
	var items []models.OrphanAttachment
	if err := s.db.WithContext(ctx).Order("id ASC").Limit(sweepBatch).Find(&items).Error; err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if err := s.store.Delete(ctx, it.Path); err != nil {
			s.db.WithContext(ctx).Model(&models.OrphanAttachment{}).Where("id = ?", it.ID).
				Updates(map[string]any{"attempts": it.Attempts + 1, "last_error": truncate(err.Error(), 1024)})
			continue
		}
		// Remove row only once the blob is gone
		if err := s.db.WithContext(ctx).Delete(&models.OrphanAttachment{}, it.ID).Error; err != nil {
			s.logger.Warn("delete orphan row failed", zap.Uint("id", it.ID), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
