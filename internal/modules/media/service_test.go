package media

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediastore/internal/clients"
	"mediastore/internal/domain"
	"mediastore/internal/storage"
	"mediastore/internal/whatsapp"
)

// Mock dependencies

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, rec *domain.Media) error {
	args := m.Called(ctx, rec)
	if rec != nil {
		rec.ID = 999 // simulate DB insert
	}
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*domain.Media, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Media), args.Error(1)
}

func (m *MockRepository) GetByStoredFilename(ctx context.Context, storedFilename string) (*domain.Media, error) {
	args := m.Called(ctx, storedFilename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Media), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Media, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Media), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) ListByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory, limit, offset int) ([]domain.Media, int64, error) {
	args := m.Called(ctx, userID, category, limit, offset)
	return args.Get(0).([]domain.Media), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) SoftDelete(ctx context.Context, id, deletedBy int64) error {
	args := m.Called(ctx, id, deletedBy)
	return args.Error(0)
}

func (m *MockRepository) HardDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CountByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory) (int64, error) {
	args := m.Called(ctx, userID, category)
	return args.Get(0).(int64), args.Error(1)
}

type MockQuotaClient struct {
	mock.Mock
}

func (m *MockQuotaClient) GetStorageInfo(ctx context.Context, orgID int64) (*clients.StorageInfo, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.StorageInfo), args.Error(1)
}

type MockCredentialsClient struct {
	mock.Mock
}

func (m *MockCredentialsClient) GetCredentials(ctx context.Context, userID int64) (*clients.Credentials, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Credentials), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) UploadMedia(ctx context.Context, content []byte, mimeType, phoneNumberID, accessToken string) whatsapp.APIResponse[whatsapp.MediaUpload] {
	args := m.Called(ctx, content, mimeType, phoneNumberID, accessToken)
	return args.Get(0).(whatsapp.APIResponse[whatsapp.MediaUpload])
}

// failingProvider simulates a backend outage on Save.
type failingProvider struct{}

func (failingProvider) Save(ctx context.Context, content io.Reader, meta storage.Metadata) (*storage.Result, error) {
	return nil, errors.New("backend unavailable")
}
func (failingProvider) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("backend unavailable")
}
func (failingProvider) Delete(ctx context.Context, key string) (bool, error) {
	return false, errors.New("backend unavailable")
}
func (failingProvider) Exists(ctx context.Context, key string) bool { return false }
func (failingProvider) PublicURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", errors.New("backend unavailable")
}
func (failingProvider) Kind() domain.ProviderKind { return domain.ProviderLocal }

func newTestService(t *testing.T, repo *MockRepository, orgs *MockQuotaClient, users *MockCredentialsClient, gateway *MockGateway) *Service {
	t.Helper()
	provider, err := storage.NewLocalProvider(t.TempDir(), "http://localhost:8080/media/content")
	require.NoError(t, err)
	return NewService(repo, provider, gateway, orgs, users, NewValidator(0, DefaultAllowedTypes()), DefaultPagination())
}

func uploadInput() UploadInput {
	return UploadInput{
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		Size:        1024,
		Content:     make([]byte, 1024),
		UserID:      1,
		OrgID:       1,
	}
}

func TestUpload_Success(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{StorageUsed: 0, MaxStorage: 1 << 30, Remaining: 1 << 30}, nil)
	users.On("GetCredentials", mock.Anything, int64(1)).
		Return(&clients.Credentials{PhoneNumberID: "555000", AccessToken: "tok"}, nil)
	gateway.On("UploadMedia", mock.Anything, mock.Anything, "image/jpeg", "555000", "tok").
		Return(whatsapp.APIResponse[whatsapp.MediaUpload]{Success: true, Data: whatsapp.MediaUpload{ID: "wa-1"}, StatusCode: 200})
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Media")).Return(nil)

	resp, err := svc.Upload(context.Background(), uploadInput())
	require.NoError(t, err)

	assert.Equal(t, int64(999), resp.ID)
	assert.Equal(t, domain.CategoryImage, resp.MediaType)
	assert.Equal(t, "wa-1", resp.ExternalMediaID)
	assert.Contains(t, resp.StoredFilename, "org-1/user-1/image/")
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestUpload_QuotaExceededSkipsStorage(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{StorageUsed: 1000, MaxStorage: 1024, Remaining: 24}, nil)

	_, err := svc.Upload(context.Background(), uploadInput())
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "UploadMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_ValidationFailureSkipsQuotaCheck(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	in := uploadInput()
	in.ContentType = "application/zip"

	_, err := svc.Upload(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	orgs.AssertNotCalled(t, "GetStorageInfo", mock.Anything, mock.Anything)
}

func TestUpload_MirrorFailureDoesNotFailUpload(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{Remaining: 1 << 30}, nil)
	users.On("GetCredentials", mock.Anything, int64(1)).
		Return(&clients.Credentials{PhoneNumberID: "555000", AccessToken: "tok"}, nil)
	gateway.On("UploadMedia", mock.Anything, mock.Anything, "image/jpeg", "555000", "tok").
		Return(whatsapp.APIResponse[whatsapp.MediaUpload]{Success: false, StatusCode: 503, ErrorMessage: "breaker open"})
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Media")).Return(nil)

	resp, err := svc.Upload(context.Background(), uploadInput())
	require.NoError(t, err)
	assert.Empty(t, resp.ExternalMediaID)

	repo.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(m *domain.Media) bool {
		return m.ExternalMediaID == nil && m.Status == domain.MediaStatusCompleted
	}))
}

func TestUpload_MissingCredentialsSkipsMirror(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{Remaining: 1 << 30}, nil)
	users.On("GetCredentials", mock.Anything, int64(1)).
		Return(nil, errors.New("user service down"))
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Media")).Return(nil)

	resp, err := svc.Upload(context.Background(), uploadInput())
	require.NoError(t, err)
	assert.Empty(t, resp.ExternalMediaID)
	gateway.AssertNotCalled(t, "UploadMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_StorageFailureSkipsPersistence(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)

	svc := NewService(repo, failingProvider{}, gateway, orgs, users, NewValidator(0, DefaultAllowedTypes()), DefaultPagination())

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{Remaining: 1 << 30}, nil)

	_, err := svc.Upload(context.Background(), uploadInput())
	assert.ErrorIs(t, err, ErrUploadFailed)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	gateway.AssertNotCalled(t, "UploadMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_CategoryCeilingEnforced(t *testing.T) {
	repo := new(MockRepository)
	orgs := new(MockQuotaClient)
	users := new(MockCredentialsClient)
	gateway := new(MockGateway)
	svc := newTestService(t, repo, orgs, users, gateway)

	orgs.On("GetStorageInfo", mock.Anything, int64(1)).
		Return(&clients.StorageInfo{Remaining: 1 << 40}, nil)

	in := uploadInput()
	in.Size = 6 * 1024 * 1024 // over the 5 MiB image ceiling, under global
	in.Content = make([]byte, 8)

	_, err := svc.Upload(context.Background(), in)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestList_ClampsPagination(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo, new(MockQuotaClient), new(MockCredentialsClient), new(MockGateway))

	// page < 1 becomes 1, size 0 becomes the default 20.
	repo.On("ListByUser", mock.Anything, int64(1), 20, 0).
		Return([]domain.Media{}, int64(0), nil).Once()
	_, err := svc.List(context.Background(), 1, nil, -5, 0)
	require.NoError(t, err)

	// size above the max is clamped to 100.
	repo.On("ListByUser", mock.Anything, int64(1), 100, 100).
		Return([]domain.Media{}, int64(0), nil).Once()
	_, err = svc.List(context.Background(), 1, nil, 2, 5000)
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestList_ByCategory(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo, new(MockQuotaClient), new(MockCredentialsClient), new(MockGateway))

	cat := domain.CategoryVideo
	items := []domain.Media{{ID: 5, MediaType: cat, StoredFilename: "k", CreatedAt: time.Now()}}
	repo.On("ListByUserAndType", mock.Anything, int64(1), cat, 20, 0).
		Return(items, int64(41), nil)

	page, err := svc.List(context.Background(), 1, &cat, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(41), page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
}

func TestSoftDelete_OwnershipEnforced(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo, new(MockQuotaClient), new(MockCredentialsClient), new(MockGateway))

	repo.On("GetByID", mock.Anything, int64(9)).
		Return(&domain.Media{ID: 9, UserID: 2}, nil)

	err := svc.SoftDelete(context.Background(), 9, 1)
	assert.ErrorIs(t, err, ErrNotOwner)
	repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
}

func TestSoftDelete_Success(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo, new(MockQuotaClient), new(MockCredentialsClient), new(MockGateway))

	repo.On("GetByID", mock.Anything, int64(9)).
		Return(&domain.Media{ID: 9, UserID: 1}, nil)
	repo.On("SoftDelete", mock.Anything, int64(9), int64(1)).Return(nil)

	require.NoError(t, svc.SoftDelete(context.Background(), 9, 1))
	repo.AssertExpectations(t)
}

func TestCount_WithAndWithoutCategory(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(t, repo, new(MockQuotaClient), new(MockCredentialsClient), new(MockGateway))

	repo.On("CountByUser", mock.Anything, int64(1)).Return(int64(12), nil)
	cat := domain.CategoryImage
	repo.On("CountByUserAndType", mock.Anything, int64(1), cat).Return(int64(4), nil)

	total, err := svc.Count(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	images, err := svc.Count(context.Background(), 1, &cat)
	require.NoError(t, err)
	assert.Equal(t, int64(4), images)
}
