// Package whatsapp is the client for the WhatsApp/Facebook Graph media
// APIs: a direct multipart upload for small payloads and a resumable,
// session-based upload for large ones. Every network call runs under a
// resilience policy; failures come back as typed APIResponse values with
// an HTTP-status-like code, never as panics.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediastore/internal/resilience"
)

type Config struct {
	BaseURL    string
	APIVersion string
	// OutgoingEnabled is a kill switch: when false every call returns a
	// 503 response without a network attempt.
	OutgoingEnabled bool
	Timeout         time.Duration
}

// APIResponse is the uniform result of every gateway call. StatusCode is
// HTTP-like: 503 for breaker/retry exhaustion, 429 for rate limiting.
type APIResponse[T any] struct {
	Success      bool
	Data         T
	StatusCode   int
	ErrorMessage string
	RetryAfter   time.Duration
}

func success[T any](data T) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: data, StatusCode: http.StatusOK}
}

func failure[T any](code int, msg string) APIResponse[T] {
	return APIResponse[T]{Success: false, StatusCode: code, ErrorMessage: msg}
}

func fromFallback[T any](fb *resilience.Fallback) APIResponse[T] {
	return APIResponse[T]{
		Success:      false,
		StatusCode:   fb.StatusCode,
		ErrorMessage: fb.Message,
		RetryAfter:   fb.RetryAfter,
	}
}

// MediaUpload is the direct-mode result: the external media identifier.
type MediaUpload struct {
	ID string `json:"id"`
}

// UploadSession identifies a resumable upload session on the remote side.
type UploadSession struct {
	ID string `json:"id"`
}

// UploadHandle is the handle returned once a chunk upload completes.
type UploadHandle struct {
	Handle string `json:"h"`
}

// UploadOffset reports how many bytes the remote side has committed; a
// caller that lost connectivity re-queries it and resumes from there.
type UploadOffset struct {
	ID         string `json:"id"`
	FileOffset int64  `json:"file_offset"`
}

type Client struct {
	cfg  Config
	http *http.Client

	// one policy identity per logical operation
	mediaPolicy   *resilience.Policy
	sessionPolicy *resilience.Policy
}

func NewClient(cfg Config, mediaPolicy, sessionPolicy *resilience.Policy) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:           cfg,
		http:          &http.Client{Timeout: cfg.Timeout},
		mediaPolicy:   mediaPolicy,
		sessionPolicy: sessionPolicy,
	}
}

// UploadMedia pushes the full file in a single multipart POST to
// {base}/{ver}/{phoneNumberID}/media with the fixed messaging_product
// field, bearer-token authenticated.
func (c *Client) UploadMedia(ctx context.Context, content []byte, mimeType, phoneNumberID, accessToken string) APIResponse[MediaUpload] {
	if !c.cfg.OutgoingEnabled {
		return failure[MediaUpload](http.StatusServiceUnavailable, "Outgoing requests disabled")
	}

	endpoint := c.endpoint(phoneNumberID, "media")

	result, fb := resilience.Execute(ctx, c.mediaPolicy, func(ctx context.Context) (MediaUpload, error) {
		body, contentType, err := buildMediaForm(content, mimeType)
		if err != nil {
			return MediaUpload{}, resilience.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return MediaUpload{}, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+accessToken)

		var out MediaUpload
		if err := c.send(req, &out); err != nil {
			return MediaUpload{}, err
		}
		return out, nil
	})
	if fb != nil {
		return fromFallback[MediaUpload](fb)
	}

	log.Printf("whatsapp: media uploaded phone_number_id=%s media_id=%s", phoneNumberID, result.ID)
	return success(result)
}

// InitiateUploadSession starts a resumable upload: POST to
// {base}/{ver}/{appID}/uploads with file_name, file_length, file_type and
// access_token query parameters.
func (c *Client) InitiateUploadSession(ctx context.Context, fileName string, fileSize int64, mimeType, appID, accessToken string) APIResponse[UploadSession] {
	if !c.cfg.OutgoingEnabled {
		return failure[UploadSession](http.StatusServiceUnavailable, "Outgoing requests disabled")
	}

	q := url.Values{}
	q.Set("file_name", fileName)
	q.Set("file_length", strconv.FormatInt(fileSize, 10))
	q.Set("file_type", mimeType)
	q.Set("access_token", accessToken)
	endpoint := c.endpoint(appID, "uploads") + "?" + q.Encode()

	result, fb := resilience.Execute(ctx, c.sessionPolicy, func(ctx context.Context) (UploadSession, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return UploadSession{}, resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		var out UploadSession
		if err := c.send(req, &out); err != nil {
			return UploadSession{}, err
		}
		return out, nil
	})
	if fb != nil {
		return fromFallback[UploadSession](fb)
	}

	log.Printf("whatsapp: upload session initiated session_id=%s", result.ID)
	return success(result)
}

// UploadChunk sends file bytes starting at offset to an open session:
// POST {base}/{ver}/{sessionID} with an OAuth Authorization header, a
// file_offset header and an octet-stream body. An empty returned handle is
// treated as a protocol failure.
func (c *Client) UploadChunk(ctx context.Context, sessionID string, content []byte, accessToken string, offset int64) APIResponse[UploadHandle] {
	if !c.cfg.OutgoingEnabled {
		return failure[UploadHandle](http.StatusServiceUnavailable, "Outgoing requests disabled")
	}

	endpoint := c.endpoint(sessionID)

	result, fb := resilience.Execute(ctx, c.sessionPolicy, func(ctx context.Context) (UploadHandle, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
		if err != nil {
			return UploadHandle{}, resilience.Permanent(err)
		}
		req.Header.Set("Authorization", "OAuth "+strings.TrimSpace(accessToken))
		req.Header.Set("file_offset", strconv.FormatInt(offset, 10))
		req.Header.Set("Content-Type", "application/octet-stream")

		var out UploadHandle
		if err := c.send(req, &out); err != nil {
			return UploadHandle{}, err
		}
		if out.Handle == "" {
			return UploadHandle{}, resilience.Permanent(fmt.Errorf("upload succeeded but no handle returned for session %s", sessionID))
		}
		return out, nil
	})
	if fb != nil {
		return fromFallback[UploadHandle](fb)
	}

	log.Printf("whatsapp: chunk uploaded session_id=%s handle=%s", sessionID, result.Handle)
	return success(result)
}

// QueryOffset returns the session's committed byte offset: GET
// {base}/{ver}/{sessionID}?access_token=... with an OAuth header.
func (c *Client) QueryOffset(ctx context.Context, sessionID, accessToken string) APIResponse[UploadOffset] {
	if !c.cfg.OutgoingEnabled {
		return failure[UploadOffset](http.StatusServiceUnavailable, "Outgoing requests disabled")
	}

	endpoint := c.endpoint(sessionID) + "?access_token=" + url.QueryEscape(accessToken)

	result, fb := resilience.Execute(ctx, c.sessionPolicy, func(ctx context.Context) (UploadOffset, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return UploadOffset{}, resilience.Permanent(err)
		}
		req.Header.Set("Authorization", "OAuth "+accessToken)
		req.Header.Set("Accept", "application/json")

		var out UploadOffset
		if err := c.send(req, &out); err != nil {
			return UploadOffset{}, err
		}
		return out, nil
	})
	if fb != nil {
		return fromFallback[UploadOffset](fb)
	}
	return success(result)
}

// send executes the request and decodes a JSON body into out. 4xx bodies
// are captured and surfaced as permanent (non-retryable) errors, 5xx as
// transient ones.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		err := fmt.Errorf("graph api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 {
			return resilience.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph api response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(segments ...string) string {
	parts := append([]string{strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion}, segments...)
	return strings.Join(parts, "/")
}

func buildMediaForm(content []byte, mimeType string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="file"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
