package media

import (
	"time"

	"mediastore/internal/domain"
)

// UploadInput is everything the orchestrator needs for one upload. Content
// is fully buffered so the storage write and the best-effort mirror can
// both read it.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
	UserID      int64
	OrgID       int64
}

// UploadResponse mirrors the persisted record. ExternalMediaID is empty
// when the mirror did not succeed.
type UploadResponse struct {
	ID               int64                `json:"id"`
	URL              string               `json:"url"`
	OriginalFilename string               `json:"original_filename"`
	StoredFilename   string               `json:"stored_filename"`
	MediaType        domain.MediaCategory `json:"media_type"`
	ContentType      string               `json:"content_type"`
	FileSizeBytes    int64                `json:"file_size_bytes"`
	ExternalMediaID  string               `json:"media_id,omitempty"`
	UploadedAt       time.Time            `json:"uploaded_at"`
}

// MediaItem is one row of a paged listing.
type MediaItem struct {
	ID               int64                `json:"id"`
	URL              string               `json:"url"`
	OriginalFilename string               `json:"original_filename"`
	StoredFilename   string               `json:"stored_filename"`
	MediaType        domain.MediaCategory `json:"media_type"`
	ContentType      string               `json:"content_type"`
	ExternalMediaID  string               `json:"media_id,omitempty"`
	FileSizeBytes    int64                `json:"file_size_bytes"`
	UploadedAt       time.Time            `json:"uploaded_at"`
}

// MediaPage is a clamped page of media items.
type MediaPage struct {
	Items      []MediaItem `json:"items"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalItems int64       `json:"total_items"`
	TotalPages int         `json:"total_pages"`
}

func toMediaItem(m domain.Media) MediaItem {
	item := MediaItem{
		ID:               m.ID,
		URL:              m.MediaURL,
		OriginalFilename: m.OriginalFilename,
		StoredFilename:   m.StoredFilename,
		MediaType:        m.MediaType,
		ContentType:      m.MimeType,
		FileSizeBytes:    m.FileSize,
		UploadedAt:       m.CreatedAt,
	}
	if m.ExternalMediaID != nil {
		item.ExternalMediaID = *m.ExternalMediaID
	}
	return item
}
