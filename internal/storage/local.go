package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediastore/internal/domain"
)

// LocalProvider stores objects under a root directory on the local
// filesystem. Public URLs are static and never expire.
type LocalProvider struct {
	root    string
	baseURL string
}

func NewLocalProvider(root, baseURL string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (p *LocalProvider) Save(ctx context.Context, content io.Reader, meta Metadata) (*Result, error) {
	key := meta.GenerateKey()
	path := p.resolve(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newError(domain.ProviderLocal, "save", key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return nil, newError(domain.ProviderLocal, "save", key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, content); err != nil {
		_ = os.Remove(path)
		return nil, newError(domain.ProviderLocal, "save", key, err)
	}

	log.Printf("storage: saved file key=%s provider=%s", key, domain.ProviderLocal)

	return &Result{
		StorageKey:  key,
		PublicURL:   p.staticURL(key),
		Provider:    domain.ProviderLocal,
		Bucket:      p.root,
		Region:      "local",
		FileSize:    meta.FileSize,
		ContentType: meta.ContentType,
	}, nil
}

func (p *LocalProvider) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(p.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newNotFoundError(domain.ProviderLocal, "retrieve", key)
		}
		return nil, newError(domain.ProviderLocal, "retrieve", key, err)
	}
	return f, nil
}

func (p *LocalProvider) Delete(ctx context.Context, key string) (bool, error) {
	path := p.resolve(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, newError(domain.ProviderLocal, "delete", key, err)
	}
	return true, nil
}

func (p *LocalProvider) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(p.resolve(key))
	return err == nil
}

// PublicURL ignores expiry: local storage has no URL signing.
func (p *LocalProvider) PublicURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return p.staticURL(key), nil
}

func (p *LocalProvider) Kind() domain.ProviderKind { return domain.ProviderLocal }

func (p *LocalProvider) staticURL(key string) string {
	return p.baseURL + "/" + key
}

func (p *LocalProvider) resolve(key string) string {
	return filepath.Join(p.root, filepath.FromSlash(key))
}
