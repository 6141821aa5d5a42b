package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediastore/internal/domain"
)

// S3Config configures the object-store provider. Works with MinIO,
// ArvanCloud, AWS S3 or any other S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	// PublicBaseURL overrides the default amazonaws-style URL template
	// for static (non-expiring) URLs, e.g. a CDN domain.
	PublicBaseURL string
	// MultipartThresholdBytes selects the upload strategy: files smaller
	// than the threshold go up in a single shot, everything else uses a
	// multipart/streamed upload.
	MultipartThresholdBytes int64
	// PartSizeBytes is the multipart part size. Zero lets the client pick.
	PartSizeBytes uint64
}

// S3Provider stores objects in an S3-compatible bucket via minio-go.
type S3Provider struct {
	client *minio.Client
	cfg    S3Config

	// upload paths are injectable so the threshold decision is testable
	// without a network call
	putSingle    func(ctx context.Context, key string, content io.Reader, meta Metadata) error
	putMultipart func(ctx context.Context, key string, content io.Reader, meta Metadata) error
}

func NewS3Provider(cfg S3Config) (*S3Provider, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is empty")
	}
	if cfg.MultipartThresholdBytes <= 0 {
		cfg.MultipartThresholdBytes = 100 * 1024 * 1024
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	p := &S3Provider{client: client, cfg: cfg}
	p.putSingle = p.putObjectSingle
	p.putMultipart = p.putObjectMultipart
	return p, nil
}

// EnsureBucket creates the bucket when it does not exist yet. Called once
// at startup, not per upload.
func (p *S3Provider) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", p.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", p.cfg.Bucket, err)
	}
	log.Printf("storage: created bucket %q", p.cfg.Bucket)
	return nil
}

func (p *S3Provider) Save(ctx context.Context, content io.Reader, meta Metadata) (*Result, error) {
	key := meta.GenerateKey()

	// Strategy is purely a function of declared size.
	var err error
	if meta.FileSize < p.cfg.MultipartThresholdBytes {
		err = p.putSingle(ctx, key, content, meta)
	} else {
		err = p.putMultipart(ctx, key, content, meta)
	}
	if err != nil {
		return nil, newError(domain.ProviderS3, "save", key, err)
	}

	log.Printf("storage: saved file key=%s provider=%s bucket=%s", key, domain.ProviderS3, p.cfg.Bucket)

	return &Result{
		StorageKey:  key,
		PublicURL:   p.staticURL(key),
		Provider:    domain.ProviderS3,
		Bucket:      p.cfg.Bucket,
		Region:      p.cfg.Region,
		FileSize:    meta.FileSize,
		ContentType: meta.ContentType,
	}, nil
}

func (p *S3Provider) putObjectSingle(ctx context.Context, key string, content io.Reader, meta Metadata) error {
	_, err := p.client.PutObject(ctx, p.cfg.Bucket, key, content, meta.FileSize, minio.PutObjectOptions{
		ContentType:      meta.ContentType,
		DisableMultipart: true,
		UserMetadata:     objectMetadata(meta),
	})
	return err
}

func (p *S3Provider) putObjectMultipart(ctx context.Context, key string, content io.Reader, meta Metadata) error {
	_, err := p.client.PutObject(ctx, p.cfg.Bucket, key, content, meta.FileSize, minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		PartSize:     p.cfg.PartSizeBytes,
		UserMetadata: objectMetadata(meta),
	})
	return err
}

func (p *S3Provider) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := p.client.GetObject(ctx, p.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, newError(domain.ProviderS3, "retrieve", key, err)
	}
	// GetObject is lazy; a missing key only surfaces on the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, newNotFoundError(domain.ProviderS3, "retrieve", key)
		}
		return nil, newError(domain.ProviderS3, "retrieve", key, err)
	}
	return obj, nil
}

func (p *S3Provider) Delete(ctx context.Context, key string) (bool, error) {
	if !p.Exists(ctx, key) {
		return false, nil
	}
	if err := p.client.RemoveObject(ctx, p.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, newError(domain.ProviderS3, "delete", key, err)
	}
	return true, nil
}

func (p *S3Provider) Exists(ctx context.Context, key string) bool {
	_, err := p.client.StatObject(ctx, p.cfg.Bucket, key, minio.StatObjectOptions{})
	return err == nil
}

// PublicURL returns a presigned URL when expiry > 0, otherwise the static
// templated URL.
func (p *S3Provider) PublicURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		return p.staticURL(key), nil
	}
	u, err := p.client.PresignedGetObject(ctx, p.cfg.Bucket, key, expiry, nil)
	if err != nil {
		return "", newError(domain.ProviderS3, "presign", key, err)
	}
	return u.String(), nil
}

func (p *S3Provider) Kind() domain.ProviderKind { return domain.ProviderS3 }

func (p *S3Provider) staticURL(key string) string {
	if p.cfg.PublicBaseURL != "" {
		return strings.TrimRight(p.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}

func objectMetadata(meta Metadata) map[string]string {
	return map[string]string{
		"original-filename": meta.OriginalFilename,
		"user-id":           strconv.FormatInt(meta.UserID, 10),
		"org-id":            strconv.FormatInt(meta.OrgID, 10),
		"media-type":        string(meta.Category),
	}
}
