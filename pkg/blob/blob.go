// Package blob issues URLs for media files kept outside the document store.
// Clients upload directly to the returned URL and keep the opaque reference;
// viewers receive a short-lived download URL only after access is granted.
package blob

import (
	"context"
	"time"
)

// Upload is a one-time upload target
type Upload struct {
	Ref       string    `json:"file_ref"`
	URL       string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store issues upload and download URLs
type Store interface {
	// UploadURL reserves a new reference and returns where to upload it
	UploadURL(ctx context.Context, contentType string) (*Upload, error)
	// URL returns a download URL for ref, or "" when ref is unknown
	URL(ctx context.Context, ref string) (string, error)
}

const refPrefix = "media/"
