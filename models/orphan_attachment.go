package models

import "time"

// OrphanAttachment records a stored blob that no post references anymore and
// that still has to be removed from the attachment store.
type OrphanAttachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Path      string    `gorm:"size:255;not null;index" json:"path"` // attachment-store relative path
	Reason    string    `gorm:"size:32;not null" json:"reason"`      // replaced, destroyed, rollback
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	LastError string    `gorm:"size:1024" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reasons recorded on orphaned attachments.
const (
	OrphanReplaced  = "replaced"
	OrphanDestroyed = "destroyed"
	OrphanRollback  = "rollback"
)
