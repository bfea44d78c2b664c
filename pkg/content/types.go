// Package content owns content items, their version history and the
// editorial operations that move them through the workflow.
package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

// Type is the media kind of a content item
type Type string

const (
	TypeVideo    Type = "video"
	TypeArticle  Type = "article"
	TypeDocument Type = "document"
	TypeAudio    Type = "audio"
)

// Valid reports whether t is a known content type
func (t Type) Valid() bool {
	switch t {
	case TypeVideo, TypeArticle, TypeDocument, TypeAudio:
		return true
	}
	return false
}

var (
	ErrContentNotFound = fmt.Errorf("%w: content", apperr.ErrNotFound)
	ErrVersionNotFound = fmt.Errorf("%w: version", apperr.ErrNotFound)
	ErrConcurrentEdit  = fmt.Errorf("%w: content changed while the operation ran", apperr.ErrPrecondition)
)

// Fields are the versioned fields of a content item. A Version stores a full copy.
type Fields struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            Type       `json:"type"`
	Body            string     `json:"body,omitempty"`
	RichTextContent string     `json:"rich_text_content,omitempty"`
	ExternalURL     string     `json:"external_url,omitempty"`
	FileRef         string     `json:"file_ref,omitempty"`
	ThumbnailRef    string     `json:"thumbnail_ref,omitempty"`
	IsPublic        bool       `json:"is_public"`
	Active          bool       `json:"active"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// Normalize folds article rich text into the body, replacing it. Articles
// never keep RichTextContent.
func (f *Fields) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	if f.Type == TypeArticle && f.RichTextContent != "" {
		f.Body = f.RichTextContent
		f.RichTextContent = ""
	}
}

// Validate checks the fields after normalization
func (f *Fields) Validate() error {
	if f.Title == "" {
		return apperr.Invalid("title is required")
	}
	if !f.Type.Valid() {
		return apperr.Invalid("unknown content type %q", f.Type)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return apperr.Invalid("end date precedes start date")
	}
	return nil
}

// InWindow reports whether now falls inside [StartDate, EndDate]. Missing bounds are open.
func (f *Fields) InWindow(now time.Time) bool {
	if f.StartDate != nil && now.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && now.After(*f.EndDate) {
		return false
	}
	return true
}

// Review holds the editorial metadata stamped by workflow transitions
type Review struct {
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Item is a content item
type Item struct {
	ID string `json:"id"`
	Fields
	Status         workflow.Status `json:"status"`
	CurrentVersion int             `json:"current_version"`
	PasswordHash   string          `json:"-"`
	CreatedBy      string          `json:"created_by,omitempty"`
	Review
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether viewing the item can be unlocked with a password
func (i *Item) HasPassword() bool {
	return i.PasswordHash != ""
}

// Available reports whether the item passes the workflow gate at now:
// published, active and inside its availability window.
func (i *Item) Available(now time.Time) bool {
	return i.Status == workflow.StatusPublished && i.Active && i.InWindow(now)
}

// Clone returns a deep copy
func (i *Item) Clone() *Item {
	cp := *i
	cp.StartDate = copyTime(i.StartDate)
	cp.EndDate = copyTime(i.EndDate)
	cp.SubmittedAt = copyTime(i.SubmittedAt)
	cp.ReviewedAt = copyTime(i.ReviewedAt)
	cp.PublishedAt = copyTime(i.PublishedAt)
	return &cp
}

// Version is an immutable snapshot of an item's fields
type Version struct {
	ID                string    `json:"id"`
	ContentID         string    `json:"content_id"`
	VersionNumber     int       `json:"version_number"`
	Fields            Fields    `json:"fields"`
	AuthorID          string    `json:"author_id,omitempty"`
	ChangeDescription string    `json:"change_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListFilter narrows ListItems. Empty values match everything.
type ListFilter struct {
	Status    workflow.Status
	Type      Type
	CreatedBy string
}

// Patch is a partial update of an item. Nil pointers leave a field unchanged.
type Patch struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Type            *Type      `json:"type,omitempty"`
	Body            *string    `json:"body,omitempty"`
	RichTextContent *string    `json:"rich_text_content,omitempty"`
	ExternalURL     *string    `json:"external_url,omitempty"`
	FileRef         *string    `json:"file_ref,omitempty"`
	ThumbnailRef    *string    `json:"thumbnail_ref,omitempty"`
	IsPublic        *bool      `json:"is_public,omitempty"`
	Active          *bool      `json:"active,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	ClearStartDate  bool       `json:"clear_start_date,omitempty"`
	ClearEndDate    bool       `json:"clear_end_date,omitempty"`
	// Password sets a new viewing password; an empty string removes it
	Password *string `json:"password,omitempty"`
}

// apply writes the patch onto f and reports whether anything changed
func (p Patch) apply(f *Fields) bool {
	before := *f
	setString(&f.Title, p.Title)
	setString(&f.Description, p.Description)
	if p.Type != nil {
		f.Type = *p.Type
	}
	setString(&f.Body, p.Body)
	setString(&f.RichTextContent, p.RichTextContent)
	setString(&f.ExternalURL, p.ExternalURL)
	setString(&f.FileRef, p.FileRef)
	setString(&f.ThumbnailRef, p.ThumbnailRef)
	if p.IsPublic != nil {
		f.IsPublic = *p.IsPublic
	}
	if p.Active != nil {
		f.Active = *p.Active
	}
	if p.ClearStartDate {
		f.StartDate = nil
	} else if p.StartDate != nil {
		f.StartDate = copyTime(p.StartDate)
	}
	if p.ClearEndDate {
		f.EndDate = nil
	} else if p.EndDate != nil {
		f.EndDate = copyTime(p.EndDate)
	}
	f.Normalize()
	return !fieldsEqual(before, *f)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func fieldsEqual(a, b Fields) bool {
	if !timeEqual(a.StartDate, b.StartDate) || !timeEqual(a.EndDate, b.EndDate) {
		return false
	}
	a.StartDate, a.EndDate, b.StartDate, b.EndDate = nil, nil, nil, nil
	return a == b
}
