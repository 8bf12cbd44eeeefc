package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/meta-publisher/internal/events"
)

const (
	testVerifyToken = "my_test_verify_token"
	testAppSecret   = "my_test_app_secret"
)

func signPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerification(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
		body  string
	}{
		{"valid token", "hub.mode=subscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"invalid token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing mode", "hub.verify_token=" + testVerifyToken + "&hub.challenge=12345", http.StatusBadRequest, ""},
		{"missing challenge", "hub.mode=subscribe&hub.verify_token=" + testVerifyToken, http.StatusBadRequest, ""},
		{"unexpected mode", "hub.mode=unsubscribe&hub.verify_token=" + testVerifyToken + "&hub.challenge=12345", http.StatusBadRequest, ""},
	}
	h := NewHandler(testVerifyToken, testAppSecret, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/webhook?"+tt.query, nil))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.body != "" && rr.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.body)
			}
		})
	}
}

func TestVerification_NoTokenConfigured(t *testing.T) {
	h := NewHandler("", testAppSecret, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func post(h http.Handler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNotification_RelaysChanges(t *testing.T) {
	sink := &events.Memory{}
	h := NewHandler(testVerifyToken, testAppSecret, sink)
	payload := `{"object":"instagram","entry":[
		{"id":"178414","time":1520383571,"changes":[{"field":"comments","value":{"text":"hello"}},{"field":"mentions","value":{"media_id":"m1"}}]},
		{"id":"178415","time":1520383572,"changes":[{"field":"story_insights","value":{}}]}
	]}`

	rr := post(h, payload, signPayload(testAppSecret, payload))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := sink.Webhooks()
	if len(got) != 3 {
		t.Fatalf("changes = %+v", got)
	}
	if got[0].Object != "instagram" || got[0].EntryID != "178414" || got[0].Field != "comments" || string(got[0].Value) != `{"text":"hello"}` {
		t.Errorf("change 0 = %+v", got[0])
	}
	if got[2].EntryID != "178415" || got[2].Time != 1520383572 {
		t.Errorf("change 2 = %+v", got[2])
	}
}

type failingSink struct{ calls int }

func (f *failingSink) EmitWebhook(context.Context, events.WebhookChange) error {
	f.calls++
	return errors.New("bus unavailable")
}

func TestNotification_SinkFailureStillAcknowledged(t *testing.T) {
	sink := &failingSink{}
	h := NewHandler(testVerifyToken, testAppSecret, sink)
	payload := `{"object":"page","entry":[{"id":"p1","time":1,"changes":[{"field":"feed","value":{}},{"field":"feed","value":{}}]}]}`

	rr := post(h, payload, signPayload(testAppSecret, payload))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if sink.calls != 2 {
		t.Errorf("sink calls = %d, want 2", sink.calls)
	}
}

func TestNotification_Rejected(t *testing.T) {
	valid := `{"object":"instagram","entry":[]}`
	tests := []struct {
		name      string
		payload   string
		signature string
		want      int
	}{
		{"wrong secret", valid, signPayload("wrong_secret", valid), http.StatusForbidden},
		{"missing signature", valid, "", http.StatusForbidden},
		{"bad prefix", valid, "md5=abc123", http.StatusForbidden},
		{"bad hex", valid, "sha256=zz", http.StatusForbidden},
		{"empty body", "", "sha256=abc123", http.StatusBadRequest},
		{"malformed json", `{"object":`, signPayload(testAppSecret, `{"object":`), http.StatusBadRequest},
	}
	sink := &events.Memory{}
	h := NewHandler(testVerifyToken, testAppSecret, sink)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := post(h, tt.payload, tt.signature); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
	if n := len(sink.Webhooks()); n != 0 {
		t.Errorf("rejected notifications relayed %d changes", n)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(testVerifyToken, testAppSecret, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}
