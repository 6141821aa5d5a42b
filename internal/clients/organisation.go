// Package clients holds the thin HTTP clients for the surrounding
// platform services (organisation quota, user credentials). Every call is
// wrapped by a resilience policy; exhaustion surfaces as
// ErrServiceUnavailable rather than a raw transport error.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"mediastore/internal/resilience"
)

// ErrServiceUnavailable marks an upstream platform service as unreachable
// after the resilience policy gave up.
var ErrServiceUnavailable = errors.New("external service unavailable")

// StorageInfo is the organisation's storage quota snapshot. It is fetched
// per upload and never cached authoritatively here.
type StorageInfo struct {
	StorageUsed int64 `json:"storage_used"`
	MaxStorage  int64 `json:"max_storage"`
	Remaining   int64 `json:"remaining"`
}

type OrganisationConfig struct {
	BaseURL         string
	OutgoingEnabled bool
	Timeout         time.Duration
}

// OrganisationClient queries the organisation service for storage quota.
type OrganisationClient struct {
	cfg    OrganisationConfig
	http   *http.Client
	policy *resilience.Policy
}

func NewOrganisationClient(cfg OrganisationConfig, policy *resilience.Policy) *OrganisationClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OrganisationClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		policy: policy,
	}
}

// GetStorageInfo fetches the organisation's quota snapshot.
func (c *OrganisationClient) GetStorageInfo(ctx context.Context, orgID int64) (*StorageInfo, error) {
	if !c.cfg.OutgoingEnabled {
		log.Printf("clients: outgoing organisation calls disabled")
		return nil, fmt.Errorf("%w: outgoing organisation client calls are disabled", ErrServiceUnavailable)
	}

	endpoint := fmt.Sprintf("%s/api/v1/organisations/%d/storage-info", strings.TrimRight(c.cfg.BaseURL, "/"), orgID)

	info, fb := resilience.Execute(ctx, c.policy, func(ctx context.Context) (*StorageInfo, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("organisation service request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("organisation service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode < 500 {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		var out StorageInfo
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode storage info: %w", err)
		}
		return &out, nil
	})
	if fb != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, fb.Message)
	}
	return info, nil
}
