package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/conalog/patch-cli/internal/debug"
	"github.com/conalog/patch-cli/internal/validation"
)

const (
	DefaultTimeout                 = 30 * time.Second
	DefaultMaxResponseBytes  int64 = 10 << 20
	DefaultMaxMultipartBytes int64 = 20 << 20
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// Timeout bounds each send, including the token refresh sub-call.
	Timeout           time.Duration
	MaxResponseBytes  int64
	MaxMultipartBytes int64
	// HTTPClient is copied; its redirect policy is always replaced.
	HTTPClient *http.Client
	UserAgent  string
	// RequestsPerSecond paces outgoing requests when positive.
	RequestsPerSecond float64
	Burst             int
}

// Client is the PATCH API client.
//
// A Client owns one session slot shared by every call made through it and is
// safe for concurrent use. When two calls hit 401 at the same time each one
// refreshes the token on its own.
type Client struct {
	HTTP      *http.Client
	UserAgent string

	baseURL           *url.URL
	maxResponseBytes  int64
	maxMultipartBytes int64
	limiter           *rate.Limiter
	session           sessionStore
	newRequestID      func() string
}

// Compile-time interface implementation checks
var (
	_ Requester    = (*Client)(nil)
	_ HTTPExecutor = (*Client)(nil)
)

// New creates a client for baseURL. The base URL is validated once here:
// it needs a host, no query or fragment, and https unless the host is loopback.
func New(baseURL string, opts Options) (*Client, error) {
	parsed, err := validation.ValidateBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	base := *parsed
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
		if base.RawPath != "" {
			base.RawPath += "/"
		}
	}

	var httpClient *http.Client
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		httpClient = &cp
	} else {
		httpClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: newTransport(),
		}
	}
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	c := &Client{
		HTTP:              httpClient,
		UserAgent:         opts.UserAgent,
		baseURL:           &base,
		maxResponseBytes:  opts.MaxResponseBytes,
		maxMultipartBytes: opts.MaxMultipartBytes,
		newRequestID:      uuid.NewString,
	}
	if c.maxResponseBytes <= 0 {
		c.maxResponseBytes = DefaultMaxResponseBytes
	}
	if c.maxMultipartBytes <= 0 {
		c.maxMultipartBytes = DefaultMaxMultipartBytes
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

func newTransport() *http.Transport {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = false
	return transport
}

// BaseURL returns the normalized base URL, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Session returns a copy of the current session, if any.
func (c *Client) Session() (Session, bool) {
	return c.session.read()
}

// SetSession installs a session obtained elsewhere, e.g. a pre-issued token.
func (c *Client) SetSession(token, accountType string) {
	c.session.write(&Session{Token: token, AccountType: accountType})
}

// Logout drops the local session. No request is sent.
func (c *Client) Logout() {
	c.session.write(nil)
}

// endpoint describes one logical API call.
type endpoint struct {
	method string
	path   string
	query  Query
	// body is JSON-encoded when set; otherwise rawBody is sent with contentType.
	body         any
	rawBody      []byte
	contentType  string
	accept       string
	includeAuth  bool
	allowRefresh bool
}

func getEndpoint(path string, query Query) endpoint {
	return endpoint{
		method:       http.MethodGet,
		path:         path,
		query:        query,
		accept:       "application/json",
		includeAuth:  true,
		allowRefresh: true,
	}
}

func postEndpoint(path string, body any) endpoint {
	return endpoint{
		method:       http.MethodPost,
		path:         path,
		body:         body,
		accept:       "application/json",
		includeAuth:  true,
		allowRefresh: true,
	}
}

// loginEndpoint never attaches a session and never refreshes.
func loginEndpoint(path string, body any) endpoint {
	return endpoint{
		method: http.MethodPost,
		path:   path,
		body:   body,
		accept: "application/json",
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// execute runs one logical call: build, authenticate, send, inspect.
// A 401 on an authenticated call that allows refresh triggers exactly one
// refresh and one resend.
func (c *Client) execute(ctx context.Context, ep endpoint) (*response, error) {
	u, err := c.buildURL(ep.path, ep.query)
	if err != nil {
		return nil, err
	}

	body := ep.rawBody
	contentType := ep.contentType
	if ep.body != nil {
		body, err = json.Marshal(ep.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		contentType = "application/json"
	}

	retryUsed := false
	for attempt := 1; ; attempt++ {
		var session *Session
		if ep.includeAuth {
			if s, ok := c.session.read(); ok {
				session = &s
			}
		}
		authed := session != nil

		start := time.Now()
		requestID := c.newRequestID()
		resp, err := c.send(ctx, ep.method, u, body, contentType, ep.accept, requestID, session)
		if err != nil {
			if debug.IsEnabled(ctx) {
				slog.Debug("request failed", "method", ep.method, "path", u.Path, "attempt", attempt, "request_id", requestID, "error", err)
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized && authed && ep.allowRefresh && !retryUsed {
			discardBody(resp.Body)
			retryUsed = true
			slog.Info("session expired, refreshing token", "method", ep.method, "path", u.Path)
			if err := c.RefreshToken(ctx); err != nil {
				return nil, err
			}
			continue
		}

		data, err := c.readResponse(ep.method, u, resp)
		if debug.IsEnabled(ctx) {
			slog.Debug("request complete", "method", ep.method, "path", u.Path, "status", resp.StatusCode, "attempt", attempt, "request_id", requestID, "duration", time.Since(start))
		}
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, classifyError(resp.StatusCode, data, resp.Header)
		}
		return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
	}
}

// send issues a single HTTP request. The body bytes are rebuilt into a fresh
// reader each time so a resend after refresh is safe.
func (c *Client) send(ctx context.Context, method string, u *url.URL, body []byte, contentType, accept, requestID string, session *Session) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, URL: u.Redacted(), Err: err}
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if session != nil {
		req.Header.Set("Authorization", asBearer(session.Token))
		req.Header.Set("Account-Type", session.AccountType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: u.Redacted(), Err: err}
	}
	return resp, nil
}

// readResponse reads and closes a bounded response body. An oversized body is
// a DecodeError; a broken connection is a TransportError.
func (c *Client) readResponse(method string, u *url.URL, resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := readBodyLimited(resp.Body, c.maxResponseBytes)
	if err != nil {
		if IsDecodeError(err) {
			return nil, err
		}
		return nil, &TransportError{Method: method, URL: u.Redacted(), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return data, nil
}

// do executes ep and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, ep endpoint, result any) error {
	resp, err := c.execute(ctx, ep)
	if err != nil {
		return err
	}
	return decodeJSON(resp.body, result)
}

// doText executes ep and returns the body as text. With decodeJSONString a
// JSON content type holding a bare JSON string is unwrapped.
func (c *Client) doText(ctx context.Context, ep endpoint, decodeJSONString bool) (string, error) {
	ep.accept = ""
	resp, err := c.execute(ctx, ep)
	if err != nil {
		return "", err
	}
	return decodeText(resp.body, resp.header.Get("Content-Type"), decodeJSONString), nil
}

// FilePart is one file in a multipart upload.
type FilePart struct {
	FieldName   string
	Filename    string
	ContentType string
	Content     []byte
}

// PostMultipart performs an authenticated multipart POST with form fields and
// files. The whole payload is built before sending and is bounded by
// MaxMultipartBytes.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, result any) error {
	contentType, payload, err := encodeMultipart(fields, files, c.maxMultipartBytes)
	if err != nil {
		return err
	}
	ep := endpoint{
		method:       http.MethodPost,
		path:         path,
		rawBody:      payload,
		contentType:  contentType,
		accept:       "application/json",
		includeAuth:  true,
		allowRefresh: true,
	}
	return c.do(ctx, ep, result)
}

func encodeMultipart(fields map[string]string, files []FilePart, limit int64) (string, []byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := validation.RejectCRLF(key, "multipart field name"); err != nil {
			return "", nil, err
		}
		if err := writer.WriteField(key, fields[key]); err != nil {
			return "", nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
		if int64(body.Len()) > limit {
			return "", nil, fmt.Errorf("multipart payload exceeds %d bytes", limit)
		}
	}

	for _, file := range files {
		if err := validation.RejectCRLF(file.FieldName, "multipart file field name"); err != nil {
			return "", nil, err
		}
		if err := validation.RejectCRLF(file.Filename, "multipart filename"); err != nil {
			return "", nil, err
		}
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := validation.RejectCRLF(ct, "multipart content type"); err != nil {
			return "", nil, err
		}
		if int64(body.Len())+int64(len(file.Content)) > limit {
			return "", nil, fmt.Errorf("multipart payload exceeds %d bytes", limit)
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(file.FieldName), escapeQuotes(file.Filename)))
		header.Set("Content-Type", ct)
		part, err := writer.CreatePart(header)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create form file %s: %w", file.Filename, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return "", nil, fmt.Errorf("failed to write file content %s: %w", file.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	if int64(body.Len()) > limit {
		return "", nil, fmt.Errorf("multipart payload exceeds %d bytes", limit)
	}
	return writer.FormDataContentType(), body.Bytes(), nil
}

// RawResponse is a successful response returned by Do.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do performs an authenticated request against an arbitrary relative path.
// It backs the raw api command and follows the same refresh protocol.
func (c *Client) Do(ctx context.Context, method, path string, query Query, body []byte) (*RawResponse, error) {
	ep := endpoint{
		method:       strings.ToUpper(method),
		path:         path,
		query:        query,
		rawBody:      body,
		accept:       "application/json",
		includeAuth:  true,
		allowRefresh: true,
	}
	if len(body) > 0 {
		ep.contentType = "application/json"
	}
	resp, err := c.execute(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &RawResponse{StatusCode: resp.status, Header: resp.header, Body: resp.body}, nil
}

func asBearer(token string) string {
	const prefix = "Bearer "
	if len(token) >= len(prefix) && strings.EqualFold(token[:len(prefix)], prefix) {
		return token
	}
	return prefix + token
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func discardBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
