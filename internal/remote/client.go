package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

// repoPathCookie carries the repository root on every request.
const repoPathCookie = "repo_path"

// Client talks to the remote store over HTTP.
type Client struct {
	baseURL string
	root    string
	http    *http.Client
	opts    Options
	breaker *serrors.CircuitBreaker
	retry   serrors.RetryConfig
}

var _ Store = (*Client)(nil)

// NewClient creates an unbound client for the store at baseURL.
// Call ForRoot before issuing requests.
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, serrors.ConfigError(fmt.Sprintf("invalid remote endpoint %q", baseURL), err)
	}
	opts = opts.WithDefaults()

	// No http.Client.Timeout: it would override the per-request context timeout.
	transport := &http.Transport{
		MaxIdleConns:        opts.PoolSize,
		MaxIdleConnsPerHost: opts.PoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport},
		opts:    opts,
		breaker: serrors.NewCircuitBreaker("remote-transfer",
			serrors.WithMaxFailures(opts.BreakerFailures),
			serrors.WithResetTimeout(opts.BreakerReset)),
		retry: serrors.DefaultRetryConfig(),
	}, nil
}

// ForRoot returns a client whose requests are scoped to root.
// The returned client shares the connection pool and circuit breaker.
func (c *Client) ForRoot(root string) *Client {
	bound := *c
	bound.root = root
	return &bound
}

// Root returns the repository root the client is bound to.
func (c *Client) Root() string {
	return c.root
}

// Breaker exposes the transfer circuit breaker state for status output.
func (c *Client) Breaker() serrors.State {
	return c.breaker.State()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Status implements Store.
func (c *Client) Status(ctx context.Context, repoID string) (Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/repos/"+url.PathEscape(repoID)+"/status", nil)
	if err != nil {
		return StatusError, err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return StatusNotFound, nil
	case resp.StatusCode != http.StatusOK:
		return StatusError, statusError(resp, "status")
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StatusError, serrors.New(serrors.ErrCodeRemoteDecode, "decode status response", err)
	}
	return Status(body.Status), nil
}

// Register implements Store. It is retried with backoff.
func (c *Client) Register(ctx context.Context) (string, error) {
	return serrors.RetryWithResult(ctx, c.retry, func() (string, error) {
		resp, err := c.do(ctx, http.MethodPost, "/upload/repos/private", nil)
		if err != nil {
			return "", err
		}
		defer drain(resp)
		if !success(resp) {
			return "", statusError(resp, "register")
		}

		var body registerResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", serrors.New(serrors.ErrCodeRemoteDecode, "decode register response", err)
		}
		if body.ID == "" {
			return "", serrors.New(serrors.ErrCodeRemoteDecode, "register response has no id", nil)
		}
		return body.ID, nil
	})
}

// RemoteFingerprints implements Store.
func (c *Client) RemoteFingerprints(ctx context.Context, repoID string, paths []string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/upload/repos/private/uuids/"+url.PathEscape(repoID), paths)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if !success(resp) {
		return nil, statusError(resp, "uuids")
	}

	var raw []*string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, serrors.New(serrors.ErrCodeRemoteDecode, "decode fingerprints response", err)
	}
	if len(raw) != len(paths) {
		return nil, serrors.New(serrors.ErrCodeRemoteDecode,
			fmt.Sprintf("fingerprints response has %d entries for %d paths", len(raw), len(paths)), nil)
	}

	out := make([]string, len(raw))
	for i, fp := range raw {
		if fp != nil {
			out[i] = *fp
		}
	}
	return out, nil
}

// AddFile implements Store.
func (c *Client) AddFile(ctx context.Context, repoID string, f File) error {
	return c.transfer(ctx, "/upload/repos/private/add_file/"+url.PathEscape(repoID), f)
}

// UpdateFile implements Store.
func (c *Client) UpdateFile(ctx context.Context, repoID string, f File) error {
	return c.transfer(ctx, "/upload/repos/private/update_file/"+url.PathEscape(repoID), f)
}

// transfer posts one file through the circuit breaker. Transfers are never
// retried here; the next sync re-detects anything that did not land.
func (c *Client) transfer(ctx context.Context, path string, f File) error {
	err := c.breaker.Execute(func() error {
		resp, err := c.do(ctx, http.MethodPost, path, f)
		if err != nil {
			return err
		}
		defer drain(resp)
		if !success(resp) {
			return statusError(resp, "transfer").WithDetail("file", f.Path)
		}
		return nil
	})
	if errors.Is(err, serrors.ErrCircuitOpen) {
		return serrors.New(serrors.ErrCodeRemoteTripped, "remote store is failing, transfer skipped", err).
			WithDetail("file", f.Path)
	}
	return err
}

// FinishUpload implements Store. It is retried with backoff.
func (c *Client) FinishUpload(ctx context.Context, repoID string) error {
	return serrors.Retry(ctx, c.retry, func() error {
		resp, err := c.do(ctx, http.MethodPost, "/upload/repos/private/finish_upload/"+url.PathEscape(repoID), nil)
		if err != nil {
			return err
		}
		defer drain(resp)
		if !success(resp) {
			return statusError(resp, "finish_upload")
		}
		return nil
	})
}

// IndexProgress implements Store.
func (c *Client) IndexProgress(ctx context.Context, repoID string) (IndexProgress, error) {
	resp, err := c.do(ctx, http.MethodGet, "/upload/repos/private/index_progress/"+url.PathEscape(repoID), nil)
	if err != nil {
		return IndexProgress{}, err
	}
	defer drain(resp)
	if !success(resp) {
		return IndexProgress{}, statusError(resp, "index_progress")
	}

	var body progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return IndexProgress{}, serrors.New(serrors.ErrCodeRemoteDecode, "decode progress response", err)
	}
	if body.Progress == "done" {
		return IndexProgress{Done: true, Fraction: 1}, nil
	}
	frac, err := strconv.ParseFloat(body.Progress, 64)
	if err != nil {
		return IndexProgress{}, serrors.New(serrors.ErrCodeRemoteDecode,
			fmt.Sprintf("unexpected progress value %q", body.Progress), err)
	}
	return IndexProgress{Fraction: frac}, nil
}

// do sends one request with the repository cookie and a JSON body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		// The body is read by the caller; cancel once it is closed.
		defer func() {
			if cancel != nil {
				cancel()
			}
		}()
		resp, err := c.send(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		cancel = nil
		return resp, nil
	}
	return c.send(ctx, method, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, serrors.InternalError("encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, serrors.InternalError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.root != "" {
		// Written raw: http.Cookie would drop the bytes of non-ASCII or
		// Windows roots that are not valid in a cookie value.
		req.Header.Add("Cookie", repoPathCookie+"="+c.root)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, serrors.New(serrors.ErrCodeNetworkTimeout, "remote request timed out", err).
				WithDetail("path", path)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, serrors.RemoteError("remote store unreachable", err).WithDetail("path", path)
	}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func statusError(resp *http.Response, op string) *serrors.SyncError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := serrors.New(serrors.ErrCodeRemoteStatus,
		fmt.Sprintf("remote %s returned %d", op, resp.StatusCode), nil).
		WithDetail("status", strconv.Itoa(resp.StatusCode))
	if len(snippet) > 0 {
		err.WithDetail("body", strings.TrimSpace(string(snippet)))
	}
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
