// Package webhook receives Meta webhook callbacks for the accounts this
// service publishes to (Instagram, Facebook Page and Threads subscriptions)
// and relays every change as an event.
//
// Verification (GET):
//
//	Meta sends hub.mode, hub.verify_token and hub.challenge. The handler
//	answers with the challenge when the verify token matches.
//
// Notification (POST):
//
//	The JSON body is signed with X-Hub-Signature-256 (HMAC-SHA256 keyed by
//	the app secret). Each entry[].changes[] item becomes one
//	events.WebhookChange.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/events"
)

// maxBodySize bounds a notification body. Meta batches up to 1000 updates
// per notification.
const maxBodySize = 1 << 20

// Notification is the body of a webhook POST.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Changes flattens n into one event per change.
func (n Notification) Changes() []events.WebhookChange {
	var out []events.WebhookChange
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			out = append(out, events.WebhookChange{
				Object:  n.Object,
				EntryID: e.ID,
				Time:    e.Time,
				Field:   c.Field,
				Value:   c.Value,
			})
		}
	}
	return out
}

// Handler handles Meta webhook verification and notifications.
type Handler struct {
	verifyToken string
	appSecret   string
	sink        events.WebhookEmitter
}

// NewHandler creates a webhook handler. verifyToken must match the token
// configured in the Meta App Dashboard; appSecret validates signatures.
// sink may be nil, in which case changes are only logged.
func NewHandler(verifyToken, appSecret string, sink events.WebhookEmitter) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		sink:        sink,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleNotification(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	challenge := q.Get("hub.challenge")

	switch {
	case mode == "" || challenge == "":
		log.Warn().Str("mode", mode).Msg("Webhook verification missing required parameters")
		http.Error(w, "missing required parameters", http.StatusBadRequest)
		return
	case mode != "subscribe":
		log.Warn().Str("mode", mode).Msg("Webhook verification unexpected mode")
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return
	case h.verifyToken == "" || !hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(h.verifyToken)):
		log.Warn().Msg("Webhook verification failed: invalid verify token")
		http.Error(w, "invalid verify token", http.StatusForbidden)
		return
	}

	log.Info().Msg("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleNotification answers 200 once the signature checks out, even when
// relaying a change fails; Meta retries non-2xx deliveries for hours and a
// broken bus should not turn into a redelivery storm.
func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Webhook notification: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		log.Warn().Msg("Webhook notification: missing or invalid signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Warn().Err(err).Msg("Webhook notification: malformed JSON")
		http.Error(w, "malformed notification", http.StatusBadRequest)
		return
	}

	changes := n.Changes()
	log.Info().Str("object", n.Object).Int("entries", len(n.Entry)).Int("changes", len(changes)).Msg("Webhook notification received")
	h.relay(r.Context(), changes)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) relay(ctx context.Context, changes []events.WebhookChange) {
	if h.sink == nil {
		return
	}
	for _, ch := range changes {
		if err := h.sink.EmitWebhook(ctx, ch); err != nil {
			log.Warn().Err(err).Str("object", ch.Object).Str("field", ch.Field).Msg("Failed to relay webhook change")
		}
	}
}

// verifySignature checks a "sha256=<hex>" header against the HMAC-SHA256
// of body in constant time.
func (h *Handler) verifySignature(body []byte, header string) bool {
	hexSig, ok := strings.CutPrefix(header, "sha256=")
	if !ok || hexSig == "" || h.appSecret == "" {
		return false
	}
	received, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}
