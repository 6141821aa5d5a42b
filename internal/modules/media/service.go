package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"mediastore/internal/domain"
	"mediastore/internal/repository"
	"mediastore/internal/storage"
)

// Pagination clamps page requests: sizes outside [MinPageSize, MaxPageSize]
// are pulled back into range, unset sizes get the default.
type Pagination struct {
	MinPageSize     int
	DefaultPageSize int
	MaxPageSize     int
}

func DefaultPagination() Pagination {
	return Pagination{MinPageSize: 1, DefaultPageSize: 20, MaxPageSize: 100}
}

// Service orchestrates the upload pipeline (validate, quota check,
// storage write, best-effort mirror, persist) and the read paths around
// the persisted records.
type Service struct {
	repo       Repository
	provider   storage.Provider
	gateway    MirrorGateway
	orgs       QuotaClient
	users      CredentialsClient
	validator  *Validator
	pagination Pagination
}

func NewService(
	repo Repository,
	provider storage.Provider,
	gateway MirrorGateway,
	orgs QuotaClient,
	users CredentialsClient,
	validator *Validator,
	pagination Pagination,
) *Service {
	if pagination.MinPageSize < 1 {
		pagination = DefaultPagination()
	}
	return &Service{
		repo:       repo,
		provider:   provider,
		gateway:    gateway,
		orgs:       orgs,
		users:      users,
		validator:  validator,
		pagination: pagination,
	}
}

// Upload runs the pipeline as one linear state machine with no
// backtracking. Validation and quota failures happen before any side
// effect; the storage write strictly precedes persistence so a crash can
// only ever orphan an unreferenced blob, never leave dangling metadata.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResponse, error) {
	if len(in.Content) == 0 {
		return nil, ErrEmptyFile
	}
	if err := s.validator.ValidateFile(in.Filename, in.ContentType, in.Size); err != nil {
		return nil, err
	}

	info, err := s.orgs.GetStorageInfo(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}
	if info.Remaining < in.Size {
		return nil, fmt.Errorf("%w: only %d bytes remaining", ErrQuotaExceeded, info.Remaining)
	}

	category, err := s.validator.DetectCategory(in.ContentType)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCategorySize(category, in.Size); err != nil {
		return nil, err
	}

	meta := storage.Metadata{
		OriginalFilename: in.Filename,
		ContentType:      in.ContentType,
		FileSize:         in.Size,
		UserID:           in.UserID,
		OrgID:            in.OrgID,
		Category:         category,
		FileExtension:    filepath.Ext(in.Filename),
	}

	log.Printf("media: uploading file=%s provider=%s user_id=%d org_id=%d", in.Filename, s.provider.Kind(), in.UserID, in.OrgID)

	result, err := s.provider.Save(ctx, bytes.NewReader(in.Content), meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	// The mirror is best-effort: its failure variant is ignored right
	// here, visibly, and must never fail the persistence step below.
	externalID := s.mirrorToWhatsApp(ctx, in)

	record := &domain.Media{
		OriginalFilename: in.Filename,
		StoredFilename:   result.StorageKey,
		FileSize:         in.Size,
		MimeType:         in.ContentType,
		ExternalMediaID:  externalID,
		MediaURL:         result.PublicURL,
		MediaType:        category,
		StorageProvider:  result.Provider,
		StorageBucket:    result.Bucket,
		StorageKey:       result.StorageKey,
		StorageRegion:    result.Region,
		StoragePath:      result.StorageKey,
		Status:           domain.MediaStatusCompleted,
		OrgID:            in.OrgID,
		UserID:           in.UserID,
		CreatedAt:        time.Now(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: persist record: %v", ErrUploadFailed, err)
	}

	log.Printf("media: upload completed storage_key=%s provider=%s mirrored=%t", result.StorageKey, result.Provider, externalID != nil)

	resp := &UploadResponse{
		ID:               record.ID,
		URL:              result.PublicURL,
		OriginalFilename: in.Filename,
		StoredFilename:   result.StorageKey,
		MediaType:        category,
		ContentType:      in.ContentType,
		FileSizeBytes:    in.Size,
		UploadedAt:       record.CreatedAt,
	}
	if externalID != nil {
		resp.ExternalMediaID = *externalID
	}
	return resp, nil
}

// mirrorToWhatsApp attempts the secondary write and returns the external
// media id on success, nil otherwise. Every failure variant, from missing
// credentials to an open breaker or retry exhaustion, is logged and
// absorbed.
func (s *Service) mirrorToWhatsApp(ctx context.Context, in UploadInput) *string {
	creds, err := s.users.GetCredentials(ctx, in.UserID)
	if err != nil {
		log.Printf("media: mirror skipped, no credentials for user_id=%d: %v", in.UserID, err)
		return nil
	}

	resp := s.gateway.UploadMedia(ctx, in.Content, in.ContentType, creds.PhoneNumberID, creds.AccessToken)
	if !resp.Success || resp.Data.ID == "" {
		log.Printf("media: mirror failed status=%d msg=%q, continuing with storage only", resp.StatusCode, resp.ErrorMessage)
		return nil
	}
	return &resp.Data.ID
}

// List returns one clamped page of the user's media, optionally filtered
// by category.
func (s *Service) List(ctx context.Context, userID int64, category *domain.MediaCategory, page, pageSize int) (*MediaPage, error) {
	page, pageSize = s.clampPage(page, pageSize)
	offset := (page - 1) * pageSize

	var (
		items []domain.Media
		total int64
		err   error
	)
	if category != nil {
		items, total, err = s.repo.ListByUserAndType(ctx, userID, *category, pageSize, offset)
	} else {
		items, total, err = s.repo.ListByUser(ctx, userID, pageSize, offset)
	}
	if err != nil {
		return nil, err
	}

	out := make([]MediaItem, 0, len(items))
	for _, m := range items {
		out = append(out, toMediaItem(m))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &MediaPage{
		Items:      out,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// notFound folds the repository sentinel into this package's so callers
// only ever match one error variable.
func notFound(err error) error {
	if errors.Is(err, repository.ErrMediaNotFound) {
		return ErrMediaNotFound
	}
	return err
}

func (s *Service) GetByID(ctx context.Context, id int64) (*MediaItem, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	item := toMediaItem(*m)
	return &item, nil
}

// OpenContent streams the stored object for a storage key.
func (s *Service) OpenContent(ctx context.Context, storageKey string) (io.ReadCloser, *domain.Media, error) {
	m, err := s.repo.GetByStoredFilename(ctx, storageKey)
	if err != nil {
		return nil, nil, notFound(err)
	}
	rc, err := s.provider.Retrieve(ctx, storageKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, ErrMediaNotFound
		}
		return nil, nil, err
	}
	return rc, m, nil
}

// PublicURL generates an access URL for a storage key; expiry 0 yields the
// static URL, anything positive a signed URL where the backend supports it.
func (s *Service) PublicURL(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	return s.provider.PublicURL(ctx, storageKey, expiry)
}

// SoftDelete marks the record deleted after an ownership check. The blob
// stays in storage.
func (s *Service) SoftDelete(ctx context.Context, id, userID int64) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if m.UserID != userID {
		return ErrNotOwner
	}
	return s.repo.SoftDelete(ctx, id, userID)
}

// Purge removes the blob and the record for good.
func (s *Service) Purge(ctx context.Context, id, userID int64) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if m.UserID != userID {
		return ErrNotOwner
	}
	if _, err := s.provider.Delete(ctx, m.StorageKey); err != nil {
		return fmt.Errorf("delete stored object: %w", err)
	}
	return s.repo.HardDelete(ctx, id)
}

// Count returns how many live records the user has, optionally narrowed
// to one category.
func (s *Service) Count(ctx context.Context, userID int64, category *domain.MediaCategory) (int64, error) {
	if category != nil {
		return s.repo.CountByUserAndType(ctx, userID, *category)
	}
	return s.repo.CountByUser(ctx, userID)
}

func (s *Service) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = s.pagination.DefaultPageSize
	case pageSize < s.pagination.MinPageSize:
		pageSize = s.pagination.MinPageSize
	case pageSize > s.pagination.MaxPageSize:
		pageSize = s.pagination.MaxPageSize
	}
	return page, pageSize
}
