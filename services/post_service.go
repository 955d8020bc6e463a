package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ygportal/models"
	"github.com/cppla/ygportal/storage"
)

// PostService owns the post lifecycle: validation, attachment handling,
// filtered listings and status changes.
type PostService struct {
	db         *gorm.DB
	store      storage.AttachmentStore
	validator  *PostValidator
	publicBase string
	logger     *zap.Logger
	tel        *telemetry
}

// NewPostService wires a service over db and store. publicBase prefixes stored
// attachment paths when building URLs. A nil logger disables logging.
func NewPostService(db *gorm.DB, store storage.AttachmentStore, publicBase string, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		db:         db,
		store:      store,
		validator:  NewPostValidator(),
		publicBase: publicBase,
		logger:     logger.Named("posts"),
		tel:        newTelemetry(),
	}
}

// Create validates the input, stores any attachments and inserts the post.
func (s *PostService) Create(ctx context.Context, in PostInput) (post *models.Post, err error) {
	ctx, op := s.tel.start(ctx, "posts.create")
	defer func() { s.tel.finish(ctx, op, err) }()

	rec, err := s.validator.Validate(in)
	if err != nil {
		return nil, err
	}

	p := models.Post{
		Title:        rec.Title,
		Content:      rec.Content,
		Category:     rec.Category,
		Status:       rec.Status,
		Subscription: rec.Subscription,
	}
	stored, err := s.storeAttachments(ctx, rec, &p)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		s.discard(ctx, models.OrphanRollback, stored)
		return nil, fmt.Errorf("create post: %w", err)
	}
	p.FillURLs(s.publicBase)
	return &p, nil
}

// Update replaces the post fields. An attachment slot is only touched when a
// replacement upload is supplied; the superseded blob is removed afterwards.
func (s *PostService) Update(ctx context.Context, id uint, in PostInput) (post *models.Post, err error) {
	ctx, op := s.tel.start(ctx, "posts.update")
	defer func() { s.tel.finish(ctx, op, err) }()

	rec, err := s.validator.Validate(in)
	if err != nil {
		return nil, err
	}
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.TransitionAllowed(p.Status, rec.Status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "The selected status is invalid."}}
	}

	superseded := attachmentPaths(p)
	stored, err := s.storeAttachments(ctx, rec, p)
	if err != nil {
		return nil, err
	}
	// only slots that received a replacement are superseded
	superseded = supersededPaths(superseded, attachmentPaths(p))

	p.Title = rec.Title
	p.Content = rec.Content
	p.Category = rec.Category
	p.Status = rec.Status
	if rec.SubscriptionSet {
		p.Subscription = rec.Subscription
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return enqueueOrphans(tx, models.OrphanReplaced, superseded)
	})
	if err != nil {
		s.discard(ctx, models.OrphanRollback, stored)
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}

	s.purge(ctx, models.OrphanReplaced, superseded)
	p.FillURLs(s.publicBase)
	return p, nil
}

// ChangeStatus moves a post to another status without touching other fields.
func (s *PostService) ChangeStatus(ctx context.Context, id uint, raw string) (post *models.Post, err error) {
	ctx, op := s.tel.start(ctx, "posts.change_status")
	defer func() { s.tel.finish(ctx, op, err) }()

	st, err := s.validator.ValidateStatus(raw)
	if err != nil {
		return nil, err
	}
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.TransitionAllowed(p.Status, st) {
		return nil, &ValidationError{Fields: map[string]string{"status": "The selected status is invalid."}}
	}
	if err := s.db.WithContext(ctx).Model(p).Update("status", st).Error; err != nil {
		return nil, fmt.Errorf("change status of post %d: %w", id, err)
	}
	p.Status = st
	p.FillURLs(s.publicBase)
	return p, nil
}

// Destroy removes the post row and its attachments. The row deletion and the
// orphan bookkeeping for its blobs commit together, so a blob is either removed
// right away or left queued for the sweeper.
func (s *PostService) Destroy(ctx context.Context, id uint) (err error) {
	ctx, op := s.tel.start(ctx, "posts.destroy")
	defer func() { s.tel.finish(ctx, op, err) }()

	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	paths := attachmentPaths(p)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Post{}, p.ID).Error; err != nil {
			return err
		}
		return enqueueOrphans(tx, models.OrphanDestroyed, paths)
	})
	if err != nil {
		return fmt.Errorf("destroy post %d: %w", id, err)
	}
	s.purge(ctx, models.OrphanDestroyed, paths)
	return nil
}

// Get loads a post regardless of its status.
func (s *PostService) Get(ctx context.Context, id uint) (*models.Post, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	p.FillURLs(s.publicBase)
	return p, nil
}

// GetPublished loads a post only when it is visible to guests.
func (s *PostService) GetPublished(ctx context.Context, id uint) (*models.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPublished {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// List returns one page of posts matching f, newest first.
func (s *PostService) List(ctx context.Context, f PostFilter, page int) (*PagedResult, error) {
	page = normalizePage(page)
	where, args, err := f.Predicate()
	if err != nil {
		return nil, fmt.Errorf("build post filter: %w", err)
	}

	q := s.db.WithContext(ctx).Model(&models.Post{})
	if where != "" {
		q = q.Where(where, args...)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	items := []models.Post{}
	if err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * PageSize).Limit(PageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for i := range items {
		items[i].FillURLs(s.publicBase)
	}

	return &PagedResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   PageSize,
		TotalPages: totalPages(total, PageSize),
	}, nil
}

// ListPublished is the guest listing: published posts only.
func (s *PostService) ListPublished(ctx context.Context, f PostFilter, page int) (*PagedResult, error) {
	f.Status = string(models.StatusPublished)
	return s.List(ctx, f, page)
}

func (s *PostService) find(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}
	return &p, nil
}

// storeAttachments writes the uploads of rec and points p at them. On failure
// every blob stored by this call is removed again.
func (s *PostService) storeAttachments(ctx context.Context, rec *PostRecord, p *models.Post) ([]string, error) {
	var stored []string
	slots := []struct {
		field  string
		folder string
		upload *Upload
		target **string
	}{
		{"image", storage.FolderImages, rec.Image, &p.ImagePath},
		{"file", storage.FolderFiles, rec.File, &p.FilePath},
	}
	for _, slot := range slots {
		if slot.upload == nil {
			continue
		}
		path, err := s.storeUpload(ctx, slot.upload, slot.folder)
		if err != nil {
			s.discard(ctx, models.OrphanRollback, stored)
			return nil, &StorageWriteError{Field: slot.field, Err: err}
		}
		stored = append(stored, path)
		*slot.target = &path
	}
	return stored, nil
}

func (s *PostService) storeUpload(ctx context.Context, u *Upload, folder string) (string, error) {
	if u.Open == nil {
		return "", errors.New("upload has no content")
	}
	r, err := u.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	return s.store.Store(ctx, r, u.Filename, folder)
}

// discard removes blobs that were never committed to a row.
func (s *PostService) discard(ctx context.Context, reason string, paths []string) {
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			s.tel.deleteFailed(ctx, reason)
			s.logger.Warn("attachment delete failed, queued for sweep",
				zap.String("path", path), zap.String("reason", reason), zap.Error(err))
			if qerr := enqueueOrphans(s.db.WithContext(ctx), reason, []string{path}); qerr != nil {
				s.logger.Error("queue orphan attachment failed", zap.String("path", path), zap.Error(qerr))
			}
		}
	}
}

// purge deletes blobs already queued as orphans and dequeues them on success.
// Failures stay queued for the sweeper.
func (s *PostService) purge(ctx context.Context, reason string, paths []string) {
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			s.tel.deleteFailed(ctx, reason)
			s.logger.Warn("attachment delete failed, left for sweep",
				zap.String("path", path), zap.String("reason", reason), zap.Error(err))
			s.db.WithContext(ctx).Model(&models.OrphanAttachment{}).
				Where("path = ?", path).
				Updates(map[string]any{"attempts": gorm.Expr("attempts + 1"), "last_error": truncate(err.Error(), 1024)})
			continue
		}
		if err := s.db.WithContext(ctx).Where("path = ?", path).Delete(&models.OrphanAttachment{}).Error; err != nil {
			s.logger.Warn("dequeue orphan attachment failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func enqueueOrphans(tx *gorm.DB, reason string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	rows := make([]models.OrphanAttachment, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, models.OrphanAttachment{Path: p, Reason: reason})
	}
	return tx.Create(&rows).Error
}

func attachmentPaths(p *models.Post) []string {
	var out []string
	if p.ImagePath != nil && *p.ImagePath != "" {
		out = append(out, *p.ImagePath)
	}
	if p.FilePath != nil && *p.FilePath != "" {
		out = append(out, *p.FilePath)
	}
	return out
}

// supersededPaths returns the entries of before that are no longer in after.
func supersededPaths(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, p := range after {
		keep[p] = struct{}{}
	}
	var out []string
	for _, p := range before {
		if _, ok := keep[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
