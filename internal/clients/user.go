package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediastore/internal/resilience"
)

// Credentials carries the WhatsApp sender identity for a user: the phone
// number id to post against and the access token to authenticate with.
type Credentials struct {
	PhoneNumberID string `json:"id"`
	AccessToken   string `json:"access_token"`
	WabaAppID     string `json:"waba_app_id"`
}

type UserClientConfig struct {
	BaseURL         string
	OutgoingEnabled bool
	Timeout         time.Duration
}

// UserClient resolves mirror credentials for the uploading user. Its
// unavailability only disables the best-effort mirror, never the upload.
type UserClient struct {
	cfg    UserClientConfig
	http   *http.Client
	policy *resilience.Policy
}

func NewUserClient(cfg UserClientConfig, policy *resilience.Policy) *UserClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &UserClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		policy: policy,
	}
}

func (c *UserClient) GetCredentials(ctx context.Context, userID int64) (*Credentials, error) {
	if !c.cfg.OutgoingEnabled {
		return nil, fmt.Errorf("%w: outgoing user client calls are disabled", ErrServiceUnavailable)
	}

	endpoint := fmt.Sprintf("%s/api/v1/users/%d/whatsapp-credentials", strings.TrimRight(c.cfg.BaseURL, "/"), userID)

	creds, fb := resilience.Execute(ctx, c.policy, func(ctx context.Context) (*Credentials, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("user service request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err := fmt.Errorf("user service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode < 500 {
				return nil, resilience.Permanent(err)
			}
			return nil, err
		}

		var out Credentials
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		return &out, nil
	})
	if fb != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, fb.Message)
	}
	return creds, nil
}
