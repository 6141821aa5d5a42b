package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastore/internal/domain"
)

func newTestS3(t *testing.T, threshold int64) (*S3Provider, *strategyRecorder) {
	t.Helper()
	p, err := NewS3Provider(S3Config{
		Endpoint:                "localhost:9000",
		AccessKey:               "test",
		SecretKey:               "test",
		Bucket:                  "media",
		Region:                  "us-east-1",
		MultipartThresholdBytes: threshold,
	})
	require.NoError(t, err)

	rec := &strategyRecorder{}
	p.putSingle = rec.single
	p.putMultipart = rec.multipart
	return p, rec
}

type strategyRecorder struct {
	singleCalls    int
	multipartCalls int
}

func (r *strategyRecorder) single(ctx context.Context, key string, content io.Reader, meta Metadata) error {
	r.singleCalls++
	return nil
}

func (r *strategyRecorder) multipart(ctx context.Context, key string, content io.Reader, meta Metadata) error {
	r.multipartCalls++
	return nil
}

func TestS3Provider_SmallFileUsesSingleUpload(t *testing.T) {
	p, rec := newTestS3(t, 100*1024*1024)

	_, err := p.Save(context.Background(), strings.NewReader("x"), Metadata{
		FileSize: 100*1024*1024 - 1,
		Category: domain.CategoryDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.singleCalls)
	assert.Equal(t, 0, rec.multipartCalls)
}

func TestS3Provider_ThresholdFileUsesMultipart(t *testing.T) {
	p, rec := newTestS3(t, 100*1024*1024)

	_, err := p.Save(context.Background(), strings.NewReader("x"), Metadata{
		FileSize: 100 * 1024 * 1024,
		Category: domain.CategoryDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.singleCalls)
	assert.Equal(t, 1, rec.multipartCalls)
}

func TestS3Provider_AboveThresholdUsesMultipart(t *testing.T) {
	p, rec := newTestS3(t, 100*1024*1024)

	_, err := p.Save(context.Background(), strings.NewReader("x"), Metadata{
		FileSize: 100*1024*1024 + 1,
		Category: domain.CategoryDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.singleCalls)
	assert.Equal(t, 1, rec.multipartCalls)
}

func TestS3Provider_SaveResult(t *testing.T) {
	p, _ := newTestS3(t, 1024)

	res, err := p.Save(context.Background(), strings.NewReader("x"), Metadata{
		FileSize:    1,
		ContentType: "image/png",
		OrgID:       42,
		UserID:      7,
		Category:    domain.CategoryImage,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderS3, res.Provider)
	assert.Equal(t, "media", res.Bucket)
	assert.Equal(t, "us-east-1", res.Region)
	assert.Equal(t, "https://media.s3.us-east-1.amazonaws.com/"+res.StorageKey, res.PublicURL)
}

func TestS3Provider_StaticURLPrefersPublicBase(t *testing.T) {
	p, err := NewS3Provider(S3Config{
		Endpoint:      "localhost:9000",
		Bucket:        "media",
		Region:        "us-east-1",
		PublicBaseURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/org-1/a.png", p.staticURL("org-1/a.png"))
}

func TestNewS3Provider_RequiresBucket(t *testing.T) {
	_, err := NewS3Provider(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
