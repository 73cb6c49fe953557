// Package client provides the HTTP client for the spendsnap expense API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 1 << 20

// CredentialSource supplies the bearer token and is purged on a 401.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Timeouts are the per-call-class request budgets.
type Timeouts struct {
	Default  time.Duration
	Upload   time.Duration
	Download time.Duration
}

// DefaultTimeouts returns 10s / 30s / 60s.
func DefaultTimeouts() Timeouts {
	return Timeouts{Default: 10 * time.Second, Upload: 30 * time.Second, Download: 60 * time.Second}
}

// APIError is a normalized request failure. Status is 0 for transport faults.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string { return e.Message }

// Unwrap exposes the failure as an *AppError so callers can match sentinels
// with errors.Is and read the message with apperrors.Message.
func (e *APIError) Unwrap() error {
	return &apperrors.AppError{Code: e.Code, Message: e.Message, StatusCode: e.Status, Internal: e.Err}
}

// Client is a JSON client for the expense API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	timeouts   Timeouts
	headers    http.Header
	log        *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeouts overrides the per-class timeouts. Zero values keep the defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Default > 0 {
			c.timeouts.Default = t.Default
		}
		if t.Upload > 0 {
			c.timeouts.Upload = t.Upload
		}
		if t.Download > 0 {
			c.timeouts.Download = t.Download
		}
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New creates a client for baseURL (e.g. "https://host/api"). creds may be nil
// for unauthenticated use.
func New(baseURL string, creds CredentialSource, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		creds:      creds,
		timeouts:   DefaultTimeouts(),
		headers:    http.Header{},
		log:        logger.Named("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", c.timeouts.Default, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", c.timeouts.Default, out)
}

// FilePart is a file attached to a multipart upload.
type FilePart struct {
	Field    string
	FileName string
	MIMEType string
	Body     io.Reader
}

// Upload posts a multipart form with the upload timeout.
func (c *Client) Upload(ctx context.Context, path string, file FilePart, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return c.transportError(fmt.Errorf("writing form field %s: %w", k, err), 0)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.FileName))
	h.Set("Content-Type", file.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return c.transportError(fmt.Errorf("creating form file: %w", err), 0)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return c.transportError(fmt.Errorf("reading upload body: %w", err), 0)
	}
	if err := w.Close(); err != nil {
		return c.transportError(fmt.Errorf("closing multipart body: %w", err), 0)
	}

	return c.do(ctx, http.MethodPost, path, nil, &buf, w.FormDataContentType(), c.timeouts.Upload, out)
}

// Download fetches a binary resource with the download timeout and returns
// its bytes and content type.
func (c *Client) Download(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	var dl download
	if err := c.do(ctx, http.MethodGet, path, query, nil, "", c.timeouts.Download, &dl); err != nil {
		return nil, "", err
	}
	return dl.data, dl.contentType, nil
}

// download receives a raw response body instead of decoded JSON.
type download struct {
	data        []byte
	contentType string
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.transportError(fmt.Errorf("marshaling request: %w", err), 0)
		}
		r = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, nil, r, "application/json", c.timeouts.Default, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return c.transportError(fmt.Errorf("creating request: %w", err), timeout)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(ctx, req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debugw("request failed", "method", method, "path", path, "error", err)
		return c.transportError(err, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debugw("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(ctx, resp)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *download:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(fmt.Errorf("reading response: %w", err), timeout)
		}
		dst.data = data
		dst.contentType = resp.Header.Get("Content-Type")
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{
				Status:  resp.StatusCode,
				Code:    apperrors.ErrMalformedResult.Code,
				Message: apperrors.ErrMalformedResult.Message,
				Err:     fmt.Errorf("decoding response: %w", err),
			}
		}
		return nil
	}
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.creds == nil {
		return
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		c.log.Warnw("could not read token from storage", "error", err)
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func (c *Client) statusError(ctx context.Context, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
		// Purge even if the caller's context is already done.
		if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
			c.log.Warnw("could not clear stored credentials", "error", err)
		}
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &payload)

	apiErr := &APIError{Status: resp.StatusCode, Code: codeForStatus(resp.StatusCode)}
	if codePattern.MatchString(payload.Error) {
		apiErr.Code = payload.Error
	}
	apiErr.Message = firstNonEmpty(
		payload.Message,
		payload.Error,
		fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
	)
	return apiErr
}

func (c *Client) transportError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{
			Code:    apperrors.ErrTimeout.Code,
			Message: fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds()),
			Err:     err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &APIError{Code: apperrors.ErrTransport.Code, Message: "Request cancelled", Err: err}
	}
	msg := "Network Error"
	if err == nil {
		msg = apperrors.ErrUnexpected.Message
	}
	return &APIError{Code: apperrors.ErrTransport.Code, Message: msg, Err: err}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized.Code
	case status == http.StatusForbidden:
		return apperrors.ErrForbidden.Code
	case status == http.StatusNotFound:
		return apperrors.ErrNotFound.Code
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput.Code
	case status >= http.StatusInternalServerError:
		return apperrors.ErrInternalServer.Code
	default:
		return apperrors.ErrUnexpected.Code
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return apperrors.ErrUnexpected.Message
}
