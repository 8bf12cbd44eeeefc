package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDoResolvesRelativeEndpointAndAttachesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v23.0/123/media" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "test-token" {
			t.Errorf("expected access_token query parameter, got %q", r.URL.Query().Get("access_token"))
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type: %s", ct)
		}
		r.ParseForm()
		if r.PostForm.Get("image_url") != "https://example.com/a.jpg" {
			t.Errorf("unexpected image_url: %s", r.PostForm.Get("image_url"))
		}
		w.Write([]byte(`{"id":"c-1"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/v23.0", "test-token", WithHTTPClient(server.Client()))
	raw, err := c.Post(context.Background(), "/123/media", nil, url.Values{"image_url": {"https://example.com/a.jpg"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.ID != "c-1" {
		t.Errorf("expected id c-1, got %q (err %v)", resp.ID, err)
	}
}

func TestDoAbsoluteURLPassesThrough(t *testing.T) {
	var hit string
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	}))
	defer other.Close()

	c := NewClient("https://graph.invalid/v23.0", "tok", WithHTTPClient(other.Client()))
	if _, err := c.Get(context.Background(), other.URL+"/direct/path", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit != "/direct/path" {
		t.Errorf("expected absolute URL to be used as-is, got path %q", hit)
	}
}

func TestDoWithoutTokenIsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["access_token"]; ok {
			t.Errorf("expected no access_token parameter")
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"An active access token must be used","type":"OAuthException","code":2500}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "", WithHTTPClient(server.Client()))
	_, err := c.Get(context.Background(), "/me", nil)
	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ge.API == nil || ge.API.Type != "OAuthException" {
		t.Errorf("expected decoded OAuthException, got %+v", ge.API)
	}
	if ge.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", ge.StatusCode)
	}
}

func TestDoMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret-token", WithHTTPClient(server.Client()))
	_, err := c.Get(context.Background(), "/x", nil)
	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.Contains(ge.Body, "oops") {
		t.Errorf("expected raw body in error, got %q", ge.Body)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks access token: %v", err)
	}
}

func TestDoNon2xxWithoutErrorObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "tok", WithHTTPClient(server.Client()))
	_, err := c.Get(context.Background(), "/x", nil)
	var ge *Error
	if !errors.As(err, &ge) || ge.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 *Error, got %v", err)
	}
}

func TestUploadSendsOAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "OAuth page-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		if got := r.Header.Get("file_url"); got != "https://example.com/v.mp4" {
			t.Errorf("unexpected file_url header: %q", got)
		}
		if _, ok := r.URL.Query()["access_token"]; ok {
			t.Errorf("upload must not carry access_token in the query")
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := NewClient("https://graph.invalid", "user-token", WithHTTPClient(server.Client())).WithToken("page-token")
	if _, err := c.Upload(context.Background(), server.URL+"/upload/v1", map[string]string{"file_url": "https://example.com/v.mp4"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithTokenDoesNotMutateOriginal(t *testing.T) {
	c := NewClient("https://graph.invalid", "user")
	page := c.WithToken("page")
	if c.Token() != "user" || page.Token() != "page" {
		t.Errorf("expected independent tokens, got %q and %q", c.Token(), page.Token())
	}
}

func TestIsAbsolute(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://rupload.facebook.com/video-upload/v23.0/1", true},
		{"HTTP://example.com", true},
		{"/123/media", false},
		{"123/media", false},
	}
	for _, tt := range tests {
		if got := IsAbsolute(tt.in); got != tt.want {
			t.Errorf("IsAbsolute(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&Error{API: &APIError{Code: 4}}) {
		t.Error("expected code 4 to be rate limited")
	}
	if !IsRateLimited(&Error{StatusCode: 429}) {
		t.Error("expected HTTP 429 to be rate limited")
	}
	if IsRateLimited(&Error{API: &APIError{Code: 190}}) {
		t.Error("expected code 190 not to be rate limited")
	}
	if IsRateLimited(errors.New("plain")) {
		t.Error("expected plain error not to be rate limited")
	}
}

func TestIsRetryable(t *testing.T) {
	malformed := errors.New("malformed JSON")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network failure", &Error{Method: "GET", Cause: errors.New("connection reset")}, true},
		{"server error", &Error{StatusCode: 503}, true},
		{"rate limited", &Error{StatusCode: 400, API: &APIError{Code: 4}}, true},
		{"transient flag", &Error{StatusCode: 400, API: &APIError{Code: 9007, IsTransient: true}}, true},
		{"unknown error code", &Error{StatusCode: 400, API: &APIError{Code: 1}}, true},
		{"malformed 2xx body", &Error{StatusCode: 200, Cause: malformed}, true},
		{"expired token", &Error{StatusCode: 400, API: &APIError{Code: 190, Type: "OAuthException"}}, false},
		{"invalid parameter", &Error{StatusCode: 400, API: &APIError{Code: 100}}, false},
		{"not found", &Error{StatusCode: 404}, false},
		{"error object on 200", &Error{StatusCode: 200, API: &APIError{Code: 100}}, false},
		{"cancelled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), false},
		{"schema mismatch", errors.New("decode status: unexpected type"), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is a ..."},
		{"exact", 5, "exact"},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.limit)
		if got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
		}
	}
}
