package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateStockItem OutboxAggregateType = "stock_item"
	AggregateProduct   OutboxAggregateType = "product"
	AggregateCart      OutboxAggregateType = "cart"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockItem,
	AggregateProduct,
	AggregateCart,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventStockReserved        OutboxEventType = "stock_reserved"
	EventStockCommitted       OutboxEventType = "stock_committed"
	EventStockReleased        OutboxEventType = "stock_released"
	EventStockAdjusted        OutboxEventType = "stock_adjusted"
	EventStockTrackingChanged OutboxEventType = "stock_tracking_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockReserved,
	EventStockCommitted,
	EventStockReleased,
	EventStockAdjusted,
	EventStockTrackingChanged,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
