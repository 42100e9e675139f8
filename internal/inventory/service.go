package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox/payloads"
)

const (
	opCheck    = "check"
	opReserve  = "reserve"
	opCommit   = "commit"
	opRelease  = "release"
	opAdjust   = "adjust_total"
	opTracking = "set_tracking"
	opLevel    = "level"
)

// Availability answers whether qty units can be reserved right now.
// Quantity is the number currently available, or the requested qty when the
// entity is not tracked.
type Availability struct {
	Available bool `json:"available"`
	Quantity  int  `json:"quantity"`
}

// Level is a counter snapshot of one stock entity.
type Level struct {
	EntityID   uuid.UUID             `json:"entity_id"`
	EntityKind enums.StockEntityKind `json:"entity_kind"`
	Quantity   int                   `json:"quantity"`
	Available  int                   `json:"available"`
	OnHold     int                   `json:"on_hold"`
	Committed  int                   `json:"committed"`
	Tracked    bool                  `json:"tracked"`
}

// AdjustResult reports the level after a total edit. Shortfall is how far
// the requested quantity fell below units already held or committed.
type AdjustResult struct {
	Level     Level `json:"level"`
	Requested int   `json:"requested"`
	Shortfall int   `json:"shortfall"`
}

// Service is the stock reservation engine. Callers pass resolved ledger
// entity IDs (see Resolver).
type Service interface {
	CheckAvailability(ctx context.Context, entityID uuid.UUID, qty int) (Availability, error)
	Reserve(ctx context.Context, entityID uuid.UUID, qty int) (bool, error)
	Commit(ctx context.Context, entityID uuid.UUID, qty int) error
	Release(ctx context.Context, entityID uuid.UUID, qty int) error
	AdjustTotal(ctx context.Context, entityID uuid.UUID, quantity int) (AdjustResult, error)
	SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (Level, error)
	Level(ctx context.Context, entityID uuid.UUID) (Level, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the engine. Emitter and Metrics are optional.
type ServiceParams struct {
	Ledger      Ledger
	Tx          txRunner
	Emitter     outbox.Emitter
	Metrics     *metrics.StockMetrics
	Logger      *logger.Logger
	ServiceName string
}

type service struct {
	ledger  Ledger
	tx      txRunner
	emitter outbox.Emitter
	metrics *metrics.StockMetrics
	logg    *logger.Logger
	origin  *outbox.Origin
}

// NewService builds the reservation engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	var origin *outbox.Origin
	if params.ServiceName != "" {
		origin = &outbox.Origin{Service: params.ServiceName}
	}
	return &service{
		ledger:  params.Ledger,
		tx:      params.Tx,
		emitter: params.Emitter,
		metrics: params.Metrics,
		logg:    params.Logger,
		origin:  origin,
	}, nil
}

func (s *service) CheckAvailability(ctx context.Context, entityID uuid.UUID, qty int) (Availability, error) {
	if err := requirePositive(qty); err != nil {
		return Availability{}, err
	}
	ctx = s.logg.WithEntity(ctx, entityID.String(), opCheck)

	item, err := s.ledger.Get(ctx, entityID)
	switch {
	case errors.Is(err, ErrNotFound):
		s.untracked(ctx, opCheck, "no ledger row; treating as untracked")
		return Availability{Available: true, Quantity: qty}, nil
	case err != nil:
		return Availability{}, s.fail(ctx, opCheck, err)
	case !item.InventoryTracked:
		s.untracked(ctx, opCheck, "inventory not tracked")
		return Availability{Available: true, Quantity: qty}, nil
	}
	s.metrics.Observe(opCheck, metrics.OutcomeOK)
	return Availability{Available: item.AvailableQty >= qty, Quantity: item.AvailableQty}, nil
}

func (s *service) Reserve(ctx context.Context, entityID uuid.UUID, qty int) (bool, error) {
	if err := requirePositive(qty); err != nil {
		return false, err
	}
	ctx = s.logg.WithEntity(ctx, entityID.String(), opReserve)

	reserved := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.ledger.WithTx(tx).ApplyDelta(ctx, entityID, Delta{Available: -qty, OnHold: qty})
		switch {
		case errors.Is(err, ErrInsufficientStock):
			return nil
		case errors.Is(err, ErrUntracked), errors.Is(err, ErrNotFound):
			reserved = true
			s.untracked(ctx, opReserve, "reserve skipped; inventory not tracked")
			return nil
		case err != nil:
			return err
		}
		reserved = true
		return s.emitMoved(ctx, tx, enums.EventStockReserved, item, qty)
	})
	if err != nil {
		return false, s.fail(ctx, opReserve, err)
	}
	if !reserved {
		s.metrics.Observe(opReserve, metrics.OutcomeInsufficient)
		s.logg.Info(s.logg.WithField(ctx, "qty", qty), "insufficient stock for reservation")
		return false, nil
	}
	s.metrics.Observe(opReserve, metrics.OutcomeOK)
	return true, nil
}

func (s *service) Commit(ctx context.Context, entityID uuid.UUID, qty int) error {
	return s.move(ctx, opCommit, enums.EventStockCommitted, entityID, qty, Delta{OnHold: -qty, Committed: qty})
}

func (s *service) Release(ctx context.Context, entityID uuid.UUID, qty int) error {
	return s.move(ctx, opRelease, enums.EventStockReleased, entityID, qty, Delta{Available: qty, OnHold: -qty})
}

// move applies a transition out of on_hold. Drawing more than is held means
// the caller's bookkeeping and the ledger disagree.
func (s *service) move(ctx context.Context, op string, event enums.OutboxEventType, entityID uuid.UUID, qty int, delta Delta) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	ctx = s.logg.WithEntity(ctx, entityID.String(), op)

	skipped := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.ledger.WithTx(tx).ApplyDelta(ctx, entityID, delta)
		switch {
		case errors.Is(err, ErrUntracked), errors.Is(err, ErrNotFound):
			skipped = true
			return nil
		case errors.Is(err, ErrInsufficientStock):
			return fmt.Errorf("%w: %s of %d exceeds on_hold %d", ErrInvariantViolation, op, qty, item.OnHoldQty)
		case err != nil:
			return err
		}
		return s.emitMoved(ctx, tx, event, item, qty)
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}
	if skipped {
		s.untracked(ctx, op, op+" skipped; inventory not tracked")
		return nil
	}
	s.metrics.Observe(op, metrics.OutcomeOK)
	return nil
}

func (s *service) AdjustTotal(ctx context.Context, entityID uuid.UUID, quantity int) (AdjustResult, error) {
	if quantity < 0 {
		return AdjustResult{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be zero or greater")
	}
	ctx = s.logg.WithEntity(ctx, entityID.String(), opAdjust)

	result := AdjustResult{Level: Level{EntityID: entityID}, Requested: quantity}
	skipped := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		// An inconsistent row is still adjusted; SetTotal recomputes available from the other buckets.
		before, err := ledger.Get(ctx, entityID)
		switch {
		case errors.Is(err, ErrNotFound):
			skipped = true
			return nil
		case err != nil && !errors.Is(err, ErrInvariantViolation):
			return err
		}
		after, err := ledger.SetTotal(ctx, entityID, quantity)
		switch {
		case errors.Is(err, ErrUntracked), errors.Is(err, ErrNotFound):
			skipped = true
			if after != nil {
				result.Level = levelOf(after)
			}
			return nil
		case err != nil:
			return err
		}
		result = AdjustResult{Level: levelOf(after), Requested: quantity}
		if after.Quantity > quantity {
			result.Shortfall = after.Quantity - quantity
		}
		return s.emit(ctx, tx, enums.EventStockAdjusted, after.EntityID, payloads.StockAdjustedEvent{
			EntityID:         after.EntityID,
			EntityKind:       after.EntityKind,
			PreviousQuantity: before.Quantity,
			RequestedQty:     quantity,
			Shortfall:        result.Shortfall,
			Level:            payloadLevel(after),
		})
	})
	if err != nil {
		return AdjustResult{}, s.fail(ctx, opAdjust, err)
	}
	if skipped {
		s.untracked(ctx, opAdjust, "adjust skipped; inventory not tracked")
		return result, nil
	}
	if result.Shortfall > 0 {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"requested": quantity,
			"shortfall": result.Shortfall,
		}), "requested total below held and committed units; quantity clamped")
	}
	s.metrics.Observe(opAdjust, metrics.OutcomeOK)
	return result, nil
}

func (s *service) SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (Level, error) {
	ctx = s.logg.WithEntity(ctx, entityID.String(), opTracking)

	var level Level
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, changed, err := s.ledger.WithTx(tx).SetTracking(ctx, entityID, tracked)
		if err != nil {
			return err
		}
		level = levelOf(item)
		if !changed {
			return nil
		}
		return s.emit(ctx, tx, enums.EventStockTrackingChanged, item.EntityID, payloads.StockTrackingChangedEvent{
			EntityID:   item.EntityID,
			EntityKind: item.EntityKind,
			Tracked:    tracked,
			Level:      payloadLevel(item),
		})
	})
	if err != nil {
		return Level{}, s.fail(ctx, opTracking, err)
	}
	s.metrics.Observe(opTracking, metrics.OutcomeOK)
	return level, nil
}

func (s *service) Level(ctx context.Context, entityID uuid.UUID) (Level, error) {
	ctx = s.logg.WithEntity(ctx, entityID.String(), opLevel)
	item, err := s.ledger.Get(ctx, entityID)
	if err != nil {
		return Level{}, s.fail(ctx, opLevel, err)
	}
	s.metrics.Observe(opLevel, metrics.OutcomeOK)
	return levelOf(item), nil
}

func (s *service) emitMoved(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, item *models.StockItem, qty int) error {
	return s.emit(ctx, tx, event, item.EntityID, payloads.StockMovedEvent{
		EntityID:   item.EntityID,
		EntityKind: item.EntityKind,
		Qty:        qty,
		Level:      payloadLevel(item),
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event enums.OutboxEventType, entityID uuid.UUID, data any) error {
	if s.emitter == nil {
		return nil
	}
	if err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateStockItem,
		AggregateID:   entityID,
		Origin:        s.origin,
		Data:          data,
	}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (s *service) untracked(ctx context.Context, op, msg string) {
	s.metrics.Observe(op, metrics.OutcomeUntracked)
	s.logg.Debug(ctx, msg)
}

// fail maps ledger and store errors onto the public taxonomy and logs them.
func (s *service) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrInvariantViolation):
		s.metrics.Observe(op, metrics.OutcomeInvariant)
		s.logg.Error(ctx, "stock invariant violation", err)
		return pkgerrors.Wrap(pkgerrors.CodeInvariantViolation, err, "stock counters are inconsistent")
	case errors.Is(err, ErrNotFound):
		s.metrics.Observe(op, metrics.OutcomeError)
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	case pkgerrors.As(err) != nil:
		s.metrics.Observe(op, metrics.OutcomeError)
		return err
	default:
		s.metrics.Observe(op, metrics.OutcomeError)
		s.logg.Error(ctx, "stock store failure", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock store unavailable")
	}
}

func requirePositive(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	return nil
}

func levelOf(item *models.StockItem) Level {
	return Level{
		EntityID:   item.EntityID,
		EntityKind: item.EntityKind,
		Quantity:   item.Quantity,
		Available:  item.AvailableQty,
		OnHold:     item.OnHoldQty,
		Committed:  item.CommittedQty,
		Tracked:    item.InventoryTracked,
	}
}

func payloadLevel(item *models.StockItem) payloads.StockLevel {
	return payloads.StockLevel{
		Quantity:  item.Quantity,
		Available: item.AvailableQty,
		OnHold:    item.OnHoldQty,
		Committed: item.CommittedQty,
		Tracked:   item.InventoryTracked,
	}
}
