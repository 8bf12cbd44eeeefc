// Package graph is the HTTP transport shared by the Instagram, Facebook Page
// and Threads adapters. It resolves endpoints against a versioned Graph API
// base URL, attaches the access token as the access_token query parameter,
// and decodes JSON responses.
//
// Every Meta content endpoint speaks the same wire dialect: form or query
// encoded parameters in, a JSON object out, and failures reported as an
// "error" object with a message, type and code. The adapters only describe
// which endpoint to call with which parameters; this package owns the
// request/response mechanics.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultVersion is the Graph API version used for Instagram and Facebook.
	DefaultVersion = "v23.0"

	// FacebookHost serves both Instagram Graph and Facebook Page endpoints.
	FacebookHost = "https://graph.facebook.com"

	// ThreadsBaseURL is the versioned Threads API base URL.
	ThreadsBaseURL = "https://graph.threads.net/v1.0"

	// DefaultTimeout is the HTTP client timeout for API calls.
	DefaultTimeout = 30 * time.Second

	// bodyPreviewLen bounds how much of a raw response is kept in errors and logs.
	bodyPreviewLen = 500
)

// FacebookBaseURL returns the versioned graph.facebook.com base URL.
func FacebookBaseURL(version string) string {
	if version == "" {
		version = DefaultVersion
	}
	return FacebookHost + "/" + version
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// IsAbsolute reports whether endpoint is a full http(s) URL rather than a
// path relative to the base URL.
func IsAbsolute(endpoint string) bool {
	return absoluteURL.MatchString(endpoint)
}

// Client issues authenticated requests against one Graph API base URL.
// A Client is immutable; WithToken derives a copy bound to another token,
// which is how page-scoped Facebook tokens are threaded through a job.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for baseURL. An empty accessToken produces
// unauthenticated requests, which the platform rejects with an auth error.
func NewClient(baseURL, accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token instead.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.accessToken = token
	return &cp
}

// Token returns the access token this client attaches to requests.
func (c *Client) Token() string {
	return c.accessToken
}

// Get issues a GET request and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, endpoint, query, nil)
}

// Post issues a form-encoded POST request and returns the raw JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, query, form url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, endpoint, query, form)
}

// Do issues a request. Relative endpoints resolve against the base URL;
// absolute URLs pass through unchanged. A non-empty form is sent as an
// application/x-www-form-urlencoded body. Any non-2xx status, Graph error
// object or malformed JSON body is returned as *Error.
func (c *Client) Do(ctx context.Context, method, endpoint string, query, form url.Values) (json.RawMessage, error) {
	target := c.resolve(endpoint)

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	reqURL := target
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		reqURL = target + sep + q.Encode()
	}

	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
		log.Trace().Strs("formParams", paramNames(form)).Msg("Form parameters")
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", c.scrub(err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(req, method, target)
}

// Upload posts to an out-of-band upload URL returned by a previous call
// (Facebook resumable uploads). The token travels in an
// "Authorization: OAuth <token>" header rather than the query string,
// and headers carries upload directives such as file_url.
func (c *Client) Upload(ctx context.Context, uploadURL string, headers map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", c.scrub(err))
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "OAuth "+c.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.send(req, http.MethodPost, uploadURL)
}

func (c *Client) send(req *http.Request, method, target string) (json.RawMessage, error) {
	startTime := time.Now()
	log.Debug().Str("method", method).Str("url", target).Msg("Graph API request")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Msg("Graph API response")
		return nil, &Error{Method: method, URL: target, Cause: c.scrub(err)}
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Graph API response")

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Method: method, URL: target, StatusCode: httpResp.StatusCode, Cause: fmt.Errorf("read response: %w", err)}
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	decodeErr := json.Unmarshal(raw, &envelope)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 || envelope.Error != nil {
		e := &Error{Method: method, URL: target, StatusCode: httpResp.StatusCode, Body: c.preview(raw)}
		if decodeErr == nil {
			e.API = envelope.Error
		}
		if e.API != nil {
			log.Error().Str("errorMessage", e.API.Message).Str("errorType", e.API.Type).Int("errorCode", e.API.Code).Msg("Graph API error")
		}
		return nil, e
	}
	if decodeErr != nil {
		return nil, &Error{Method: method, URL: target, StatusCode: httpResp.StatusCode, Body: c.preview(raw), Cause: fmt.Errorf("malformed JSON: %w", decodeErr)}
	}

	return json.RawMessage(raw), nil
}

func (c *Client) resolve(endpoint string) string {
	if IsAbsolute(endpoint) {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// scrub removes the access token from errors that embed the request URL.
func (c *Client) scrub(err error) error {
	if err == nil || c.accessToken == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, c.accessToken) && !strings.Contains(msg, url.QueryEscape(c.accessToken)) {
		return err
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(c.accessToken), "REDACTED")
	return fmt.Errorf("%s", strings.ReplaceAll(msg, c.accessToken, "REDACTED"))
}

func (c *Client) preview(raw []byte) string {
	s := string(raw)
	if c.accessToken != "" {
		s = strings.ReplaceAll(s, c.accessToken, "REDACTED")
	}
	return truncate(s, bodyPreviewLen)
}

// PathID escapes an id for use as a path segment.
func PathID(id string) string {
	return url.PathEscape(id)
}

func paramNames(params url.Values) []string {
	names := make([]string, 0, len(params))
	for key := range params {
		names = append(names, key)
	}
	return names
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
