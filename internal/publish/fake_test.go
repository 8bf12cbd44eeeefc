package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/meta-publisher/internal/facebook"
	"github.com/fpang/meta-publisher/internal/graph"
	"github.com/fpang/meta-publisher/internal/instagram"
	"github.com/fpang/meta-publisher/internal/retry"
	"github.com/fpang/meta-publisher/internal/threads"
)

// call is one request seen by fakeMeta. Params merges query and form.
type call struct {
	Method string
	Path   string
	Params url.Values
	Token  string
	Auth   string
}

func (c call) is(method, path string) bool { return c.Method == method && c.Path == path }

// fakeMeta plays the Graph API for all three platforms. route answers one
// call with a status code and a JSON body.
type fakeMeta struct {
	t      *testing.T
	server *httptest.Server
	route  func(c call) (int, string)

	mu    sync.Mutex
	calls []call
}

func newFakeMeta(t *testing.T, route func(c call) (int, string)) *fakeMeta {
	t.Helper()
	f := &fakeMeta{t: t, route: route}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeMeta) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	params := url.Values{}
	for k, v := range r.Form {
		if k != "access_token" {
			params[k] = v
		}
	}
	c := call{
		Method: r.Method,
		Path:   r.URL.Path,
		Params: params,
		Token:  r.URL.Query().Get("access_token"),
		Auth:   r.Header.Get("Authorization"),
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	status, body := f.route(c)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func (f *fakeMeta) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// count returns the number of calls matching method and path.
func (f *fakeMeta) count(method, path string) int {
	n := 0
	for _, c := range f.recorded() {
		if c.is(method, path) {
			n++
		}
	}
	return n
}

// countWhere returns the number of calls satisfying pred.
func (f *fakeMeta) countWhere(pred func(c call) bool) int {
	n := 0
	for _, c := range f.recorded() {
		if pred(c) {
			n++
		}
	}
	return n
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Factor: 1.6}
}

// newTestOrchestrator wires all three adapters to f with fast retries, no
// jitter and no finish delay.
func newTestOrchestrator(f *fakeMeta, opts ...Option) *Orchestrator {
	hc := f.server.Client()
	api := graph.NewClient(f.server.URL, "user-token", graph.WithHTTPClient(hc))
	base := []Option{
		WithInstagram(instagram.NewClient(api, instagram.WithRetry(fastRetry()))),
		WithFacebook(facebook.NewClient(api, facebook.WithRetry(fastRetry()))),
		WithThreads(threads.NewClient(api, threads.WithRetry(fastRetry()))),
		WithoutJitter(),
		WithFinishDelay(0),
		WithObserver(&recorder{}),
	}
	return New(append(base, opts...)...)
}

// testCommon polls every millisecond for at most 30ms.
func testCommon() Common {
	return Common{PollInterval: time.Millisecond, MaxWait: 30 * time.Millisecond, AutoPublish: true}
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func notFound(c call) (int, string) {
	return http.StatusNotFound, fmt.Sprintf(`{"error":{"message":"no route for %s %s","type":"GraphMethodException","code":100}}`, c.Method, c.Path)
}

func fields(c call) string { return c.Params.Get("fields") }

func hasPrefix(c call, prefix string) bool { return strings.HasPrefix(c.Path, prefix) }
