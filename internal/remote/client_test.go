package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/errors"
	"github.com/storekit/storekit/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	retryCfg := retry.DefaultConfig()
	retryCfg.InitialDelay = time.Millisecond
	retryCfg.MaxDelay = 5 * time.Millisecond
	retryCfg.Jitter = false

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Retry:   retryCfg,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return client
}

func contentResponse(t *testing.T, w http.ResponseWriter, data []byte, revision string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]string{
		"content":  base64.StdEncoding.EncodeToString(data),
		"revision": revision,
	})
	require.NoError(t, err)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestFetchFile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/contents/data/records.json", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		contentResponse(t, w, []byte(`{"a":1}`), "rev-1")
	}))

	content, err := client.FetchFile(context.Background(), "data/records.json")
	require.NoError(t, err)
	assert.Equal(t, "data/records.json", content.Path)
	assert.Equal(t, []byte(`{"a":1}`), content.Data)
	assert.Equal(t, "rev-1", content.Revision)
}

func TestFetchFileNotFound(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchFile(context.Background(), "missing.json")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, calls, "not-found must not be retried")
}

func TestFetchFileAuthDenied(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.FetchFile(context.Background(), "data/records.json")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRemoteAuth))
}

func TestFetchFileRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		contentResponse(t, w, []byte("payload"), "rev-2")
	}))

	content, err := client.FetchFile(context.Background(), "data/records.json")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "rev-2", content.Revision)
}

func TestFetchFileMalformedContent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"%%% not base64","revision":"rev"}`))
	}))

	_, err := client.FetchFile(context.Background(), "data/records.json")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRemoteUnavailable))
}

func TestPushFile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/contents/data/records.json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Content  string `json:"content"`
			Revision string `json:"revision"`
			Message  string `json:"message"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		data, err := base64.StdEncoding.DecodeString(payload.Content)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"b":2}`), data)
		assert.Equal(t, "rev-1", payload.Revision)
		assert.Equal(t, "scheduled update", payload.Message)

		_, _ = w.Write([]byte(`{"revision":"rev-2"}`))
	}))

	revision, err := client.PushFile(context.Background(), "data/records.json",
		[]byte(`{"b":2}`), "rev-1", "scheduled update")
	require.NoError(t, err)
	assert.Equal(t, "rev-2", revision)
}

func TestPushFileConflictNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	_, err := client.PushFile(context.Background(), "data/records.json", []byte("x"), "stale", "msg")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRemoteConflict))
	assert.Equal(t, 1, calls)
}
