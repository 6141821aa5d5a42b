package domain

import (
	"fmt"
	"strings"
	"time"
)

// MediaCategory classifies uploaded files. Each category carries its own
// maximum byte size, independent of the global upload ceiling.
type MediaCategory string

const (
	CategoryImage    MediaCategory = "IMAGE"
	CategoryVideo    MediaCategory = "VIDEO"
	CategoryDocument MediaCategory = "DOCUMENT"
	CategoryAudio    MediaCategory = "AUDIO"
	// CategoryProduct is reserved; the validator never selects it.
	CategoryProduct MediaCategory = "PRODUCT"
)

// AbsoluteMaxBytes is the global upload ceiling, checked before the
// category is known.
const AbsoluteMaxBytes int64 = 100 * 1024 * 1024

// MaxBytes returns the per-category size ceiling.
func (c MediaCategory) MaxBytes() int64 {
	switch c {
	case CategoryImage:
		return 5 * 1024 * 1024
	case CategoryVideo, CategoryAudio:
		return 16 * 1024 * 1024
	case CategoryDocument:
		return 100 * 1024 * 1024
	default:
		return 0
	}
}

func (c MediaCategory) Valid() bool {
	switch c {
	case CategoryImage, CategoryVideo, CategoryDocument, CategoryAudio, CategoryProduct:
		return true
	}
	return false
}

// ParseMediaCategory accepts the category name case-insensitively.
func ParseMediaCategory(s string) (MediaCategory, error) {
	c := MediaCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown media category: %q", s)
	}
	return c, nil
}

// ProviderKind identifies a storage backend. Exactly one is active per
// deployment, selected at startup.
type ProviderKind string

const (
	ProviderLocal ProviderKind = "LOCAL"
	ProviderS3    ProviderKind = "S3"
)

func (k ProviderKind) DisplayName() string {
	switch k {
	case ProviderLocal:
		return "Local Filesystem"
	case ProviderS3:
		return "S3-Compatible Object Storage"
	default:
		return string(k)
	}
}

// MediaStatusCompleted is the only status a record can carry: failed
// uploads are never persisted, so there is no FAILED row to represent.
const MediaStatusCompleted = "COMPLETED"

// Media is the persisted record for one stored object. It is created only
// after the storage write succeeded; ExternalMediaID is set only when the
// best-effort WhatsApp mirror succeeded. Records are soft-deleted via the
// Deleted flag and only removed by an explicit purge.
type Media struct {
	ID               int64         `gorm:"column:id;primaryKey" json:"id"`
	OriginalFilename string        `gorm:"column:original_filename" json:"original_filename"`
	StoredFilename   string        `gorm:"column:stored_filename" json:"stored_filename"`
	FileSize         int64         `gorm:"column:file_size" json:"file_size"`
	MimeType         string        `gorm:"column:mime_type" json:"mime_type"`
	ExternalMediaID  *string       `gorm:"column:external_media_id" json:"external_media_id,omitempty"`
	MediaURL         string        `gorm:"column:media_url" json:"media_url"`
	MediaType        MediaCategory `gorm:"column:media_type" json:"media_type"`
	StorageProvider  ProviderKind  `gorm:"column:storage_provider" json:"storage_provider"`
	StorageBucket    string        `gorm:"column:storage_bucket" json:"storage_bucket"`
	StorageKey       string        `gorm:"column:storage_key" json:"storage_key"`
	StorageRegion    string        `gorm:"column:storage_region" json:"storage_region"`
	StoragePath      string        `gorm:"column:storage_path" json:"-"`
	Status           string        `gorm:"column:status" json:"status"`
	OrgID            int64         `gorm:"column:org_id" json:"org_id"`
	UserID           int64         `gorm:"column:user_id" json:"user_id"`
	CreatedAt        time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at" json:"-"`
	Deleted          bool          `gorm:"column:deleted" json:"-"`
	DeletedAt        *time.Time    `gorm:"column:deleted_at" json:"-"`
	DeletedBy        *int64        `gorm:"column:deleted_by" json:"-"`
}

func (Media) TableName() string { return "media" }
