package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContentType enumerates the supported note body formats.
type ContentType string

const (
	// ContentTypePlain marks a plain text body.
	ContentTypePlain ContentType = "plain"
	// ContentTypeRich marks a rich text body.
	ContentTypeRich ContentType = "rich"
	// ContentTypeTask marks a task list body.
	ContentTypeTask ContentType = "task"
)

// ErrInvalidContentType indicates a content type outside the supported set.
var ErrInvalidContentType = errors.New("notes: invalid content type")

// ParseContentType validates raw input, defaulting empty input to plain text.
func ParseContentType(rawInput string) (ContentType, error) {
	switch ContentType(strings.TrimSpace(rawInput)) {
	case "":
		return ContentTypePlain, nil
	case ContentTypePlain:
		return ContentTypePlain, nil
	case ContentTypeRich:
		return ContentTypeRich, nil
	case ContentTypeTask:
		return ContentTypeTask, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, rawInput)
	}
}

// String returns the underlying content type value.
func (ct ContentType) String() string {
	return string(ct)
}

// Note models a persisted note. Exactly zero or one of AccountID and GuestID is
// set in well-formed records; rows with both nil are unclaimed. The share
// identifier is generated once at creation and never changes. View and edit
// secrets are stored as salted one-way hashes, never cleartext.
type Note struct {
	ID               string    `gorm:"column:id;primaryKey;size:36;not null"`
	AccountID        *string   `gorm:"column:account_id;size:36;index:idx_notes_account_updated,priority:1"`
	GuestID          *string   `gorm:"column:guest_id;size:64;index:idx_notes_guest_created,priority:1"`
	Title            string    `gorm:"column:title;type:text;not null"`
	Content          string    `gorm:"column:content;type:text;not null"`
	ContentType      string    `gorm:"column:content_type;size:16;not null;default:'plain'"`
	ShareID          string    `gorm:"column:share_id;size:64;not null;uniqueIndex"`
	IsPublic         bool      `gorm:"column:is_public;not null;default:true"`
	ViewPasswordHash *string   `gorm:"column:view_password_hash;size:128"`
	EditPasswordHash *string   `gorm:"column:edit_password_hash;size:128"`
	Folder           *string   `gorm:"column:folder;size:190"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index:idx_notes_guest_created,priority:2"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;index:idx_notes_account_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// HasViewPassword reports whether reading via the share link is gated.
func (n Note) HasViewPassword() bool {
	return n.ViewPasswordHash != nil && *n.ViewPasswordHash != ""
}

// HasEditPassword reports whether editing via the share link is gated.
func (n Note) HasEditPassword() bool {
	return n.EditPasswordHash != nil && *n.EditPasswordHash != ""
}
