package media

import (
	"context"

	"mediastore/internal/clients"
	"mediastore/internal/domain"
	"mediastore/internal/whatsapp"
)

// Repository is the persistence contract the service depends on.
type Repository interface {
	Create(ctx context.Context, m *domain.Media) error
	GetByID(ctx context.Context, id int64) (*domain.Media, error)
	GetByStoredFilename(ctx context.Context, storedFilename string) (*domain.Media, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Media, int64, error)
	ListByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory, limit, offset int) ([]domain.Media, int64, error)
	SoftDelete(ctx context.Context, id, deletedBy int64) error
	HardDelete(ctx context.Context, id int64) error
	CountByUser(ctx context.Context, userID int64) (int64, error)
	CountByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory) (int64, error)
}

// QuotaClient fetches the organisation's storage quota snapshot.
type QuotaClient interface {
	GetStorageInfo(ctx context.Context, orgID int64) (*clients.StorageInfo, error)
}

// CredentialsClient resolves the WhatsApp sender identity for a user.
type CredentialsClient interface {
	GetCredentials(ctx context.Context, userID int64) (*clients.Credentials, error)
}

// MirrorGateway is the best-effort external mirror for uploaded media.
type MirrorGateway interface {
	UploadMedia(ctx context.Context, content []byte, mimeType, phoneNumberID, accessToken string) whatsapp.APIResponse[whatsapp.MediaUpload]
}
