package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PostStatus is the closed set of states a post can be in.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	// StatusDeleted hides a post from guest listings without removing the row.
	StatusDeleted PostStatus = "deleted"
)

// Statuses lists every permitted status in display order.
var Statuses = []PostStatus{StatusDraft, StatusPublished, StatusDeleted}

// ParseStatus normalizes a raw status literal. Matching is case-insensitive and
// the legacy "Delete" label maps to StatusDeleted.
func ParseStatus(raw string) (PostStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return StatusDraft, true
	case "published":
		return StatusPublished, true
	case "deleted", "delete":
		return StatusDeleted, true
	default:
		return "", false
	}
}

// transitions allows every state to move to any other.
var transitions = map[PostStatus]map[PostStatus]bool{
	StatusDraft:     {StatusDraft: true, StatusPublished: true, StatusDeleted: true},
	StatusPublished: {StatusDraft: true, StatusPublished: true, StatusDeleted: true},
	StatusDeleted:   {StatusDraft: true, StatusPublished: true, StatusDeleted: true},
}

// TransitionAllowed reports whether a post may move from one status to another.
func TransitionAllowed(from, to PostStatus) bool {
	return transitions[from][to]
}

// Post is a publishable article managed from the administration area.
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	Category     string     `gorm:"size:255;not null;index" json:"category"`
	Status       PostStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	ImagePath    *string    `gorm:"size:255" json:"image_path"`
	FilePath     *string    `gorm:"size:255" json:"file_path"`
	Subscription bool       `gorm:"not null;default:false" json:"subscription"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Derived on read; see FillURLs.
	ImageURL *string `gorm:"-" json:"image_url"`
	FileURL  *string `gorm:"-" json:"file_url"`
}

// BeforeCreate defaults an empty status to draft.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = StatusDraft
	}
	return nil
}

// FillURLs computes the public attachment URLs from the stored paths.
func (p *Post) FillURLs(publicBase string) {
	p.ImageURL = PublicURL(publicBase, p.ImagePath)
	p.FileURL = PublicURL(publicBase, p.FilePath)
}

// ImageURLOr returns the image URL or the fallback placeholder when none exists.
func (p *Post) ImageURLOr(fallback string) string {
	if p.ImageURL == nil {
		return fallback
	}
	return *p.ImageURL
}

// PublicURL prefixes a stored attachment path with the public storage base.
func PublicURL(base string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(*path, "/")
	return &u
}
