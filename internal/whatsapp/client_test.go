package whatsapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediastore/internal/resilience"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	limiter := resilience.RateLimiterConfig{LimitForPeriod: 1000, LimitRefreshPeriod: time.Second}
	breaker := resilience.DefaultBreakerConfig()
	retry := resilience.RetryConfig{MaxAttempts: 2, WaitDuration: time.Millisecond}

	return NewClient(Config{
		BaseURL:         baseURL,
		APIVersion:      "v20.0",
		OutgoingEnabled: true,
	},
		resilience.NewPolicy("test-media", limiter, breaker, retry),
		resilience.NewPolicy("test-session", limiter, breaker, retry),
	)
}

func TestUploadMedia_Direct(t *testing.T) {
	var gotAuth, gotProduct, gotFileType string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v20.0/555000/media", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotProduct = r.FormValue("messaging_product")

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFileType = hdr.Header.Get("Content-Type")
		gotFile, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"media-123"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp := c.UploadMedia(context.Background(), []byte("jpeg-bytes"), "image/jpeg", "555000", "tok")

	require.True(t, resp.Success)
	assert.Equal(t, "media-123", resp.Data.ID)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "whatsapp", gotProduct)
	assert.Equal(t, "image/jpeg", gotFileType)
	assert.Equal(t, "jpeg-bytes", string(gotFile))
}

func TestUploadMedia_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Unsupported format"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp := c.UploadMedia(context.Background(), []byte("x"), "image/jpeg", "555000", "tok")

	require.False(t, resp.Success)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, resp.ErrorMessage, "Unsupported format")
	assert.Equal(t, 1, attempts, "4xx responses must not be retried")
}

func TestUploadMedia_ServerErrorRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"media-77"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp := c.UploadMedia(context.Background(), []byte("x"), "image/jpeg", "555000", "tok")

	require.True(t, resp.Success)
	assert.Equal(t, "media-77", resp.Data.ID)
	assert.Equal(t, 2, attempts)
}

func TestUploadMedia_KillSwitch(t *testing.T) {
	c := NewClient(Config{OutgoingEnabled: false},
		resilience.NewPolicy("m", resilience.DefaultRateLimiterConfig(), resilience.DefaultBreakerConfig(), resilience.DefaultRetryConfig()),
		resilience.NewPolicy("s", resilience.DefaultRateLimiterConfig(), resilience.DefaultBreakerConfig(), resilience.DefaultRetryConfig()),
	)

	resp := c.UploadMedia(context.Background(), []byte("x"), "image/jpeg", "555000", "tok")
	require.False(t, resp.Success)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResumableUpload_FullScenario(t *testing.T) {
	const fileLen = int64(1024)
	content := make([]byte, fileLen)

	var sessionBytes int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v20.0/app-1/uploads":
			assert.Equal(t, "big.pdf", r.URL.Query().Get("file_name"))
			assert.Equal(t, strconv.FormatInt(fileLen, 10), r.URL.Query().Get("file_length"))
			assert.Equal(t, "application/pdf", r.URL.Query().Get("file_type"))
			assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
			w.Write([]byte(`{"id":"upload:sess-1"}`))

		case r.Method == http.MethodPost && r.URL.Path == "/v20.0/upload:sess-1":
			assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))
			offset, err := strconv.ParseInt(r.Header.Get("file_offset"), 10, 64)
			require.NoError(t, err)
			assert.Equal(t, sessionBytes, offset)

			body, _ := io.ReadAll(r.Body)
			sessionBytes += int64(len(body))
			w.Write([]byte(`{"h":"handle-1"}`))

		case r.Method == http.MethodGet && r.URL.Path == "/v20.0/upload:sess-1":
			assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":"upload:sess-1","file_offset":` + strconv.FormatInt(sessionBytes, 10) + `}`))

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	ctx := context.Background()

	sess := c.InitiateUploadSession(ctx, "big.pdf", fileLen, "application/pdf", "app-1", "tok")
	require.True(t, sess.Success)
	assert.Equal(t, "upload:sess-1", sess.Data.ID)

	chunk := c.UploadChunk(ctx, sess.Data.ID, content, "tok", 0)
	require.True(t, chunk.Success)
	assert.Equal(t, "handle-1", chunk.Data.Handle)

	offset := c.QueryOffset(ctx, sess.Data.ID, "tok")
	require.True(t, offset.Success)
	assert.Equal(t, fileLen, offset.Data.FileOffset)
}

func TestUploadChunk_EmptyHandleFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp := c.UploadChunk(context.Background(), "upload:sess-2", []byte("x"), "tok", 0)

	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage, "no handle")
	assert.Equal(t, 1, attempts, "a protocol failure must not be retried")
}
