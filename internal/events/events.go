// Package events publishes finished job results and relayed Meta webhook
// changes to EventBridge for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	Source            = "meta-publisher"
	DetailTypeResult  = "PublishResult"
	DetailTypeWebhook = "MetaWebhookChange"
)

// PublishResult is the event detail for one successful job.
type PublishResult struct {
	RunID     string          `json:"runId"`
	Index     int             `json:"index"`
	JobID     string          `json:"jobId,omitempty"`
	Platform  string          `json:"platform"`
	Operation string          `json:"operation"`
	Published bool            `json:"published"`
	Permalink string          `json:"permalink,omitempty"`
	Result    json.RawMessage `json:"result"`
}

// WebhookChange is the event detail for one change of a Meta webhook
// notification.
type WebhookChange struct {
	// Object is the subscription object: instagram, page or threads.
	Object  string          `json:"object"`
	EntryID string          `json:"entryId"`
	Time    int64           `json:"time"`
	Field   string          `json:"field"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// Emitter sends PublishResult events.
type Emitter interface {
	EmitResult(ctx context.Context, ev PublishResult) error
}

// WebhookEmitter sends WebhookChange events.
type WebhookEmitter interface {
	EmitWebhook(ctx context.Context, ch WebhookChange) error
}

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge emits to an EventBridge bus.
type EventBridge struct {
	client PutEventsAPI
	bus    string
}

var _ Emitter = (*EventBridge)(nil)

// NewEventBridge returns an emitter for bus. An empty bus means the
// account's default bus.
func NewEventBridge(client PutEventsAPI, bus string) *EventBridge {
	return &EventBridge{client: client, bus: bus}
}

func (e *EventBridge) EmitResult(ctx context.Context, ev PublishResult) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal PublishResult: %w", err)
	}
	if err := e.put(ctx, DetailTypeResult, detail); err != nil {
		log.Error().Err(err).Str("runId", ev.RunID).Int("index", ev.Index).Msg("Failed to emit PublishResult")
		return err
	}
	log.Debug().Str("runId", ev.RunID).Int("index", ev.Index).Str("platform", ev.Platform).Msg("PublishResult emitted to EventBridge")
	return nil
}

func (e *EventBridge) EmitWebhook(ctx context.Context, ch WebhookChange) error {
	detail, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal WebhookChange: %w", err)
	}
	if err := e.put(ctx, DetailTypeWebhook, detail); err != nil {
		log.Error().Err(err).Str("object", ch.Object).Str("field", ch.Field).Msg("Failed to emit webhook change")
		return err
	}
	log.Debug().Str("object", ch.Object).Str("entryId", ch.EntryID).Str("field", ch.Field).Msg("Webhook change emitted to EventBridge")
	return nil
}

// put sends one entry. A partially failed batch is an error naming the
// failed entry.
func (e *EventBridge) put(ctx context.Context, detailType string, detail []byte) error {
	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(detailType),
		Detail:     aws.String(string(detail)),
	}
	if e.bus != "" {
		entry.EventBusName = aws.String(e.bus)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}
	return nil
}

// Memory records events in process memory.
type Memory struct {
	mu       sync.Mutex
	events   []PublishResult
	webhooks []WebhookChange
}

var (
	_ Emitter        = (*Memory)(nil)
	_ WebhookEmitter = (*Memory)(nil)
	_ WebhookEmitter = (*EventBridge)(nil)
)

func (m *Memory) EmitResult(_ context.Context, ev PublishResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []PublishResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishResult(nil), m.events...)
}

func (m *Memory) EmitWebhook(_ context.Context, ch WebhookChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, ch)
	return nil
}

// Webhooks returns a copy of every webhook change emitted so far.
func (m *Memory) Webhooks() []WebhookChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WebhookChange(nil), m.webhooks...)
}
