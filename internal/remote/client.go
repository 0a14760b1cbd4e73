// Package remote is the client for the content API of the remote
// repository that holds the canonical data file. The cache core never
// talks to it; only the maintenance tasks do.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storekit/storekit/pkg/errors"
	"github.com/storekit/storekit/pkg/retry"
)

// FileContent is one fetched file with its revision identifier.
type FileContent struct {
	Path     string
	Data     []byte
	Revision string
}

// Client talks to the remote content API. Transient failures are retried
// with exponential backoff; not-found and revision conflicts are not.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	retryer *retry.Retryer
	logger  *slog.Logger
}

// Config configures a remote client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   retry.Config
	Logger  *slog.Logger
}

// NewClient creates a content API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "remote base URL must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "remote")

	retryCfg := cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("remote request failed, retrying",
				"attempt", attempt, "delay", delay, "error", err)
		}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		retryer: retry.New(retryCfg),
		logger:  logger,
	}, nil
}

// FetchFile downloads one file from the content API.
func (c *Client) FetchFile(ctx context.Context, path string) (*FileContent, error) {
	var content *FileContent

	err := c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(path), nil)
		if err != nil {
			return errors.New(errors.ErrCodeInternalError, "failed to build request").WithCause(err)
		}
		c.authorize(req)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "fetch %s failed", path).WithCause(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := c.checkStatus(resp, path); err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "failed to read response for %s", path).WithCause(err)
		}

		var payload struct {
			Content  string `json:"content"`
			Revision string `json:"revision"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "malformed response for %s", path).WithCause(err)
		}
		data, err := base64.StdEncoding.DecodeString(payload.Content)
		if err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "malformed content for %s", path).WithCause(err)
		}

		content = &FileContent{Path: path, Data: data, Revision: payload.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched file", "path", path, "bytes", len(content.Data), "revision", content.Revision)
	return content, nil
}

// PushFile uploads a file, conditioned on the revision the caller last
// saw. A stale revision yields a REMOTE_CONFLICT, which is not retried.
func (c *Client) PushFile(ctx context.Context, path string, data []byte, revision, message string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"content":  base64.StdEncoding.EncodeToString(data),
		"revision": revision,
		"message":  message,
	})
	if err != nil {
		return "", errors.New(errors.ErrCodeInternalError, "failed to encode push payload").WithCause(err)
	}

	var newRevision string
	err = c.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.fileURL(path), bytes.NewReader(payload))
		if err != nil {
			return errors.New(errors.ErrCodeInternalError, "failed to build request").WithCause(err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "push %s failed", path).WithCause(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := c.checkStatus(resp, path); err != nil {
			return err
		}

		var result struct {
			Revision string `json:"revision"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return errors.Newf(errors.ErrCodeRemoteUnavailable, "malformed push response for %s", path).WithCause(err)
		}
		newRevision = result.Revision
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("pushed file", "path", path, "bytes", len(data), "revision", newRevision)
	return newRevision, nil
}

func (c *Client) fileURL(path string) string {
	return fmt.Sprintf("%s/contents/%s", c.baseURL, path)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// checkStatus maps an unsuccessful response to the error taxonomy.
func (c *Client) checkStatus(resp *http.Response, path string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.Newf(errors.ErrCodeRemoteNotFound, "%s does not exist", path)
	case resp.StatusCode == http.StatusConflict:
		return errors.Newf(errors.ErrCodeRemoteConflict, "%s was modified remotely", path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Newf(errors.ErrCodeRemoteAuth, "access to %s denied", path)
	default:
		return errors.Newf(errors.ErrCodeRemoteUnavailable, "%s returned status %d", path, resp.StatusCode)
	}
}
