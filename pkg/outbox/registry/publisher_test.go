package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveStockMoved(t *testing.T) {
	reg := newTestEventRegistry(t)

	entityID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.StockMovedEvent{
		EntityID:   entityID,
		EntityKind: enums.StockEntityProduct,
		Qty:        3,
		Level:      payloads.StockLevel{Quantity: 10, Available: 7, OnHold: 3, Tracked: true},
	})

	for _, eventType := range []enums.OutboxEventType{enums.EventStockReserved, enums.EventStockCommitted, enums.EventStockReleased} {
		event := models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateStockItem,
			AggregateID:   entityID,
			Payload:       mustEnvelope(t, payloadBytes),
		}

		resolved, err := reg.Resolve(event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", eventType, err)
		}
		if resolved.Descriptor.Topic != "stock-topic" {
			t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
		}
		payload, ok := resolved.Payload.(*payloads.StockMovedEvent)
		if !ok {
			t.Fatalf("unexpected payload type %T", resolved.Payload)
		}
		if payload.EntityID != entityID || payload.Level.OnHold != 3 {
			t.Fatalf("payload mismatch %+v", payload)
		}
		if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
			t.Fatalf("envelope incomplete %+v", resolved.Envelope)
		}
	}
}

func TestEventRegistryResolveAdjusted(t *testing.T) {
	reg := newTestEventRegistry(t)
	event := models.OutboxEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateStockItem,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"previous_quantity":10,"requested_quantity":12,"level":{"quantity":12}}`)),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := resolved.Payload.(*payloads.StockAdjustedEvent)
	if payload.PreviousQuantity != 10 || payload.Level.Quantity != 12 {
		t.Fatalf("payload mismatch %+v", payload)
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "stock_vanished",
			AggregateType: enums.AggregateStockItem,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventStockReserved,
			AggregateType: enums.AggregateCart,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventStockReserved,
			AggregateType: enums.AggregateStockItem,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventStockReleased,
			AggregateType: enums.AggregateStockItem,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"foreign entity": {
			EventType:     enums.EventStockTrackingChanged,
			AggregateType: enums.AggregateStockItem,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"entity_id":"`+uuid.NewString()+`","tracked":true}`)),
		},
		"broken envelope": {
			EventType:     enums.EventStockReleased,
			AggregateType: enums.AggregateStockItem,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{StockTopic: "stock-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
