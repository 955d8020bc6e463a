package services

import (
	"context"
	"fmt"

	"github.com/cppla/ygportal/models"
)

// PostStats is the admin dashboard summary.
type PostStats struct {
	Total           int64            `json:"total"`
	ByStatus        map[string]int64 `json:"by_status"`
	ByCategory      map[string]int64 `json:"by_category"`
	PendingOrphans  int64            `json:"pending_orphans"`
	WithAttachments int64            `json:"with_attachments"`
}

type groupCount struct {
	Name  string
	Count int64
}

// Stats counts posts per status and category and the attachments still queued for removal.
func (s *PostService) Stats(ctx context.Context) (*PostStats, error) {
	db := s.db.WithContext(ctx)
	out := &PostStats{ByStatus: map[string]int64{}, ByCategory: map[string]int64{}}
	for _, st := range models.Statuses {
		out.ByStatus[string(st)] = 0
	}

	var rows []groupCount
	if err := db.Model(&models.Post{}).Select("status AS name, COUNT(*) AS count").
		Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}
	for _, r := range rows {
		out.ByStatus[r.Name] = r.Count
		out.Total += r.Count
	}

	rows = nil
	if err := db.Model(&models.Post{}).Select("category AS name, COUNT(*) AS count").
		Group("category").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count posts by category: %w", err)
	}
	for _, r := range rows {
		out.ByCategory[r.Name] = r.Count
	}

	if err := db.Model(&models.Post{}).Where("image_path IS NOT NULL OR file_path IS NOT NULL").
		Count(&out.WithAttachments).Error; err != nil {
		return nil, fmt.Errorf("count posts with attachments: %w", err)
	}
	if err := db.Model(&models.OrphanAttachment{}).Count(&out.PendingOrphans).Error; err != nil {
		return nil, fmt.Errorf("count orphan attachments: %w", err)
	}
	return out, nil
}
