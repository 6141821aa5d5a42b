// Package storage defines the provider abstraction for persisting uploaded
// media. Backends are swapped by changing the provider selected at startup:
// the MinIO implementation works with any S3-compatible store, the local
// implementation writes straight to disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediastore/internal/domain"
)

// Metadata describes one upload. It is built per call and never persisted
// as-is; the persisted record is derived from it plus the Result.
type Metadata struct {
	OriginalFilename string
	ContentType      string
	FileSize         int64
	UserID           int64
	OrgID            int64
	Category         domain.MediaCategory
	FileExtension    string
}

// GenerateKey yields a globally-unique storage key of the form
// org-<orgId>/user-<userId>/<category>/<uuid><ext>. The deterministic
// prefix enables per-tenant listing and GC; the uuid makes keys unique
// across repeated calls with identical inputs.
func (m Metadata) GenerateKey() string {
	return fmt.Sprintf("org-%d/user-%d/%s/%s%s",
		m.OrgID,
		m.UserID,
		strings.ToLower(string(m.Category)),
		uuid.NewString(),
		m.FileExtension,
	)
}

// Result is produced exactly once per successful Save and is immutable.
type Result struct {
	StorageKey  string
	PublicURL   string
	Provider    domain.ProviderKind
	Bucket      string
	Region      string
	FileSize    int64
	ContentType string
}

// Provider is the capability contract all backends implement.
type Provider interface {
	// Save generates a storage key from meta, creates any missing parent
	// path and writes the content. Keys are unique per call, so overwrite
	// protection is not required.
	Save(ctx context.Context, content io.Reader, meta Metadata) (*Result, error)

	// Retrieve streams the object at key. A missing key yields an Error
	// for which IsNotFound reports true.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. A key that never existed returns
	// (false, nil), not an error.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether the key is present. It never returns an error.
	Exists(ctx context.Context, key string) bool

	// PublicURL returns an access URL for key. When the backend supports
	// signed URLs and expiry > 0 the URL is valid for exactly that
	// duration; otherwise it is static. Local URLs never expire.
	PublicURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	Kind() domain.ProviderKind
}

// Error is the typed failure for backend I/O problems.
type Error struct {
	Provider domain.ProviderKind
	Key      string
	Op       string
	Err      error
	notFound bool
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s: %s %q: %v", e.Provider, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider domain.ProviderKind, op, key string, err error) *Error {
	return &Error{Provider: provider, Op: op, Key: key, Err: err}
}

func newNotFoundError(provider domain.ProviderKind, op, key string) *Error {
	return &Error{Provider: provider, Op: op, Key: key, Err: errors.New("key not found"), notFound: true}
}

// IsNotFound reports whether err is a storage Error for an absent key.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.notFound
}
