package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

const tracerName = "github.com/angelmondragon/packfinderz-inventory/internal/inventory"

type tracedLedger struct {
	next   Ledger
	tracer trace.Tracer
}

// NewTracedLedger wraps a ledger with one span per call. Insufficient stock
// and untracked rows are expected outcomes and do not mark the span failed.
func NewTracedLedger(next Ledger, provider trace.TracerProvider) Ledger {
	if provider == nil {
		return next
	}
	return &tracedLedger{next: next, tracer: provider.Tracer(tracerName)}
}

func (t *tracedLedger) start(ctx context.Context, op string, entityID uuid.UUID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("stock.op", op)}
	if entityID != uuid.Nil {
		attrs = append(attrs, attribute.String("stock.entity_id", entityID.String()))
	}
	return t.tracer.Start(ctx, "stock_ledger."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrUntracked):
		span.SetAttributes(attribute.String("stock.outcome", err.Error()))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedLedger) WithTx(tx *gorm.DB) Ledger {
	return &tracedLedger{next: t.next.WithTx(tx), tracer: t.tracer}
}

func (t *tracedLedger) Get(ctx context.Context, entityID uuid.UUID) (*models.StockItem, error) {
	ctx, span := t.start(ctx, "get", entityID)
	item, err := t.next.Get(ctx, entityID)
	finish(span, err)
	return item, err
}

func (t *tracedLedger) Create(ctx context.Context, item *models.StockItem) error {
	var id uuid.UUID
	if item != nil {
		id = item.EntityID
	}
	ctx, span := t.start(ctx, "create", id)
	err := t.next.Create(ctx, item)
	finish(span, err)
	return err
}

func (t *tracedLedger) ApplyDelta(ctx context.Context, entityID uuid.UUID, delta Delta) (*models.StockItem, error) {
	ctx, span := t.start(ctx, "apply_delta", entityID)
	span.SetAttributes(
		attribute.Int("stock.delta.available", delta.Available),
		attribute.Int("stock.delta.on_hold", delta.OnHold),
		attribute.Int("stock.delta.committed", delta.Committed),
	)
	item, err := t.next.ApplyDelta(ctx, entityID, delta)
	finish(span, err)
	return item, err
}

func (t *tracedLedger) SetTotal(ctx context.Context, entityID uuid.UUID, quantity int) (*models.StockItem, error) {
	ctx, span := t.start(ctx, "set_total", entityID)
	span.SetAttributes(attribute.Int("stock.quantity", quantity))
	item, err := t.next.SetTotal(ctx, entityID, quantity)
	finish(span, err)
	return item, err
}

func (t *tracedLedger) SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (*models.StockItem, bool, error) {
	ctx, span := t.start(ctx, "set_tracking", entityID)
	span.SetAttributes(attribute.Bool("stock.tracked", tracked))
	item, changed, err := t.next.SetTracking(ctx, entityID, tracked)
	finish(span, err)
	return item, changed, err
}

func (t *tracedLedger) ListInconsistent(ctx context.Context, limit int) ([]models.StockItem, error) {
	ctx, span := t.start(ctx, "list_inconsistent", uuid.Nil)
	items, err := t.next.ListInconsistent(ctx, limit)
	span.SetAttributes(attribute.Int("stock.inconsistent", len(items)))
	finish(span, err)
	return items, err
}
