package facebook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/meta-publisher/internal/graph"
	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/retry"
)

// fakeGraph records the token each request authenticated with.
type fakeGraph struct {
	mu     sync.Mutex
	tokens map[string][]string // path -> tokens seen
	auth   []string            // Authorization headers on upload calls
}

func (f *fakeGraph) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string][]string{}
	}
	f.tokens[r.URL.Path] = append(f.tokens[r.URL.Path], r.URL.Query().Get("access_token"))
	if h := r.Header.Get("Authorization"); h != "" {
		f.auth = append(f.auth, h)
	}
}

func newTestClient(server *httptest.Server) *Client {
	api := graph.NewClient(server.URL, "user-token", graph.WithHTTPClient(server.Client()))
	return NewClient(api, WithRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Factor: 1}))
}

func pageHandler(f *fakeGraph, routes map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Path == "/page-1" && r.URL.Query().Get("fields") == "access_token" {
			w.Write([]byte(`{"id":"page-1","access_token":"page-token"}`))
			return
		}
		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"unknown path","code":803}}`))
			return
		}
		w.Write([]byte(body))
	}
}

func TestPageResolvesToken(t *testing.T) {
	f := &fakeGraph{}
	server := httptest.NewServer(pageHandler(f, nil))
	defer server.Close()

	page, err := newTestClient(server).Page(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Token() != "page-token" {
		t.Errorf("expected page-token, got %s", page.Token())
	}
	if got := f.tokens["/page-1"]; len(got) != 1 || got[0] != "user-token" {
		t.Errorf("page lookup should use the user token, saw %v", got)
	}
}

func TestPageMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Page(context.Background(), "page-1")
	if !errors.Is(err, ErrNoPageToken) {
		t.Errorf("expected ErrNoPageToken, got %v", err)
	}
}

func TestVideoCallsUsePageToken(t *testing.T) {
	f := &fakeGraph{}
	server := httptest.NewServer(pageHandler(f, map[string]string{
		"POST /page-1/videos": `{"id":"vid-1"}`,
		"GET /vid-1":          `{"id":"vid-1","status":{"video_status":"ready"}}`,
	}))
	defer server.Close()

	ctx := context.Background()
	page, err := newTestClient(server).Page(ctx, "page-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := page.CreateVideo(ctx, VideoParams{FileURL: "https://example.com/v.mp4", Title: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "vid-1" {
		t.Errorf("expected vid-1, got %s", id)
	}
	st, err := page.VideoStatus(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != platform.StatusFinished {
		t.Errorf("expected FINISHED, got %s", st.Status)
	}

	for _, path := range []string{"/page-1/videos", "/vid-1"} {
		for _, tok := range f.tokens[path] {
			if tok != "page-token" {
				t.Errorf("%s authenticated with %q, want page-token", path, tok)
			}
		}
	}
}

func TestCreateVideoPrefersVideoID(t *testing.T) {
	server := httptest.NewServer(pageHandler(&fakeGraph{}, map[string]string{
		"POST /page-1/videos": `{"id":"post-9","video_id":"vid-9"}`,
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	id, err := page.CreateVideo(context.Background(), VideoParams{FileURL: "https://example.com/v.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "vid-9" {
		t.Errorf("expected vid-9, got %s", id)
	}
}

func TestMapVideoStatus(t *testing.T) {
	tests := map[string]platform.Status{
		"ready":      platform.StatusFinished,
		"LIVE":       platform.StatusFinished,
		"published":  platform.StatusFinished,
		"error":      platform.StatusError,
		"processing": platform.StatusInProgress,
		"":           platform.StatusInProgress,
	}
	for in, want := range tests {
		if got := mapVideoStatus(in); got != want {
			t.Errorf("mapVideoStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPublishPhoto(t *testing.T) {
	var form string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fields") == "access_token" {
			w.Write([]byte(`{"access_token":"page-token"}`))
			return
		}
		r.ParseForm()
		form = r.PostForm.Encode()
		w.Write([]byte(`{"id":"photo-1","post_id":"page-1_post-1"}`))
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	published := false
	resp, err := page.PublishPhoto(context.Background(), PhotoParams{URL: "https://example.com/p.jpg", Caption: "c", Published: &published})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ID != "photo-1" || resp.PostID != "page-1_post-1" {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.Contains(form, "published=false") || !strings.Contains(form, "caption=c") {
		t.Errorf("unexpected form %s", form)
	}
}

func TestPublishPhotoMissingID(t *testing.T) {
	server := httptest.NewServer(pageHandler(&fakeGraph{}, map[string]string{
		"POST /page-1/photos": `{"success":true}`,
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	_, err := page.PublishPhoto(context.Background(), PhotoParams{URL: "https://example.com/p.jpg"})
	if !errors.Is(err, platform.ErrCreationFailed) {
		t.Errorf("expected ErrCreationFailed, got %v", err)
	}
}

func TestPermalinkPrefixesRelative(t *testing.T) {
	f := &fakeGraph{}
	server := httptest.NewServer(pageHandler(f, map[string]string{
		"GET /vid-1": `{"id":"vid-1","permalink_url":"/reel/123"}`,
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	got, err := page.Permalink(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://www.facebook.com/reel/123" {
		t.Errorf("unexpected permalink %s", got)
	}
	if tok := f.tokens["/vid-1"]; len(tok) != 1 || tok[0] != "page-token" {
		t.Errorf("permalink should use the page token, saw %v", tok)
	}
}

func TestReelUploadFlow(t *testing.T) {
	f := &fakeGraph{}
	var server *httptest.Server
	var finishForm string
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		switch {
		case r.URL.Query().Get("fields") == "access_token":
			w.Write([]byte(`{"access_token":"page-token"}`))
		case r.URL.Path == "/page-1/video_reels":
			r.ParseForm()
			if r.PostForm.Get("upload_phase") == "start" {
				w.Write([]byte(`{"video_id":"reel-1","upload_url":"` + server.URL + `/upload/reel-1"}`))
				return
			}
			finishForm = r.PostForm.Encode()
			w.Write([]byte(`{"success":true}`))
		case r.URL.Path == "/upload/reel-1":
			if r.Header.Get("file_url") != "https://example.com/r.mp4" {
				t.Errorf("unexpected file_url header %q", r.Header.Get("file_url"))
			}
			if r.URL.Query().Get("access_token") != "" {
				t.Error("upload must not carry the token in the query")
			}
			w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	page, _ := newTestClient(server).Page(ctx, "page-1")
	s, err := page.StartUpload(ctx, TargetReel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := page.UploadHosted(ctx, s, "https://example.com/r.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := page.FinishReel(ctx, s.VideoID, "desc", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.auth) != 1 || f.auth[0] != "OAuth page-token" {
		t.Errorf("expected one OAuth page-token header, got %v", f.auth)
	}
	if !strings.Contains(finishForm, "video_state=DRAFT") || !strings.Contains(finishForm, "video_id=reel-1") {
		t.Errorf("unexpected finish form %s", finishForm)
	}
}

func TestStartUploadMissingURL(t *testing.T) {
	server := httptest.NewServer(pageHandler(&fakeGraph{}, map[string]string{
		"POST /page-1/video_stories": `{"video_id":"v1"}`,
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	_, err := page.StartUpload(context.Background(), TargetVideoStory)
	var ce *platform.CreationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if !strings.Contains(ce.Reason, "upload_url") {
		t.Errorf("expected reason to name upload_url, got %q", ce.Reason)
	}
}

func TestPhotoStoryNotAccepted(t *testing.T) {
	server := httptest.NewServer(pageHandler(&fakeGraph{}, map[string]string{
		"POST /page-1/photo_stories": `{"success":false}`,
	}))
	defer server.Close()

	page, _ := newTestClient(server).Page(context.Background(), "page-1")
	_, err := page.PublishPhotoStory(context.Background(), "photo-1")
	if !errors.Is(err, platform.ErrPublishFailed) {
		t.Errorf("expected ErrPublishFailed, got %v", err)
	}
}
