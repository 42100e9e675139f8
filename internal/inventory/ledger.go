package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

var (
	ErrNotFound           = errors.New("stock item not found")
	ErrUntracked          = errors.New("stock item is not tracked")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvariantViolation = errors.New("stock invariant violation")
)

// Delta moves units between the three buckets of one row. A valid delta
// sums to zero so the total on hand never changes.
type Delta struct {
	Available int
	OnHold    int
	Committed int
}

func (d Delta) sum() int {
	return d.Available + d.OnHold + d.Committed
}

// Ledger persists stock counters. Every mutation is a single conditional
// UPDATE; the row lock taken by the store is the only mutual exclusion.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Get(ctx context.Context, entityID uuid.UUID) (*models.StockItem, error)
	Create(ctx context.Context, item *models.StockItem) error
	ApplyDelta(ctx context.Context, entityID uuid.UUID, delta Delta) (*models.StockItem, error)
	SetTotal(ctx context.Context, entityID uuid.UUID, quantity int) (*models.StockItem, error)
	SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (*models.StockItem, bool, error)
	ListInconsistent(ctx context.Context, limit int) ([]models.StockItem, error)
}

type ledger struct {
	db *gorm.DB
}

// NewLedger returns a ledger bound to the provided database.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

func (l *ledger) load(ctx context.Context, entityID uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	err := l.db.WithContext(ctx).Where("entity_id = ?", entityID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (l *ledger) Get(ctx context.Context, entityID uuid.UUID) (*models.StockItem, error) {
	item, err := l.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !item.Consistent() {
		return item, fmt.Errorf("%w: entity %s quantity=%d available=%d on_hold=%d committed=%d",
			ErrInvariantViolation, entityID, item.Quantity, item.AvailableQty, item.OnHoldQty, item.CommittedQty)
	}
	return item, nil
}

func (l *ledger) Create(ctx context.Context, item *models.StockItem) error {
	if item == nil {
		return fmt.Errorf("stock item is required")
	}
	if item.InventoryTracked && !item.Consistent() {
		return fmt.Errorf("%w: new row counters must add up to quantity", ErrInvariantViolation)
	}
	// Select("*") so a false inventory_tracked is written instead of the column default.
	return l.db.WithContext(ctx).Select("*").Create(item).Error
}

const applyDeltaSQL = `
	UPDATE stock_items
	SET available_qty = available_qty + ?,
		on_hold_qty = on_hold_qty + ?,
		committed_qty = committed_qty + ?,
		updated_at = CURRENT_TIMESTAMP
	WHERE entity_id = ?
		AND inventory_tracked = ?
		AND available_qty + ? >= 0
		AND on_hold_qty + ? >= 0
		AND committed_qty + ? >= 0`

func (l *ledger) ApplyDelta(ctx context.Context, entityID uuid.UUID, delta Delta) (*models.StockItem, error) {
	if delta.sum() != 0 {
		return nil, fmt.Errorf("%w: delta %+v does not sum to zero", ErrInvariantViolation, delta)
	}

	res := l.db.WithContext(ctx).Exec(applyDeltaSQL,
		delta.Available, delta.OnHold, delta.Committed,
		entityID, true,
		delta.Available, delta.OnHold, delta.Committed,
	)
	if res.Error != nil {
		return nil, res.Error
	}

	item, err := l.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if !item.InventoryTracked {
			return item, ErrUntracked
		}
		return item, ErrInsufficientStock
	}
	return item, nil
}

// SetTotal replaces the total on hand. Held and committed units are never
// reduced: available absorbs the change down to zero and quantity is kept at
// least at on_hold + committed. Untracked rows are left as they are.
const setTotalSQL = `
	UPDATE stock_items
	SET quantity = CASE WHEN ? >= on_hold_qty + committed_qty THEN ? ELSE on_hold_qty + committed_qty END,
		available_qty = CASE WHEN ? >= on_hold_qty + committed_qty THEN ? - on_hold_qty - committed_qty ELSE 0 END,
		updated_at = CURRENT_TIMESTAMP
	WHERE entity_id = ?
		AND inventory_tracked = ?`

func (l *ledger) SetTotal(ctx context.Context, entityID uuid.UUID, quantity int) (*models.StockItem, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must be non-negative")
	}
	res := l.db.WithContext(ctx).Exec(setTotalSQL, quantity, quantity, quantity, quantity, entityID, true)
	if res.Error != nil {
		return nil, res.Error
	}

	item, err := l.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && !item.InventoryTracked {
		return item, ErrUntracked
	}
	return item, nil
}

// SetTracking flips inventory tracking. Re-enabling treats the whole quantity
// as available again; already matching rows are left untouched.
func (l *ledger) SetTracking(ctx context.Context, entityID uuid.UUID, tracked bool) (*models.StockItem, bool, error) {
	updates := map[string]any{"inventory_tracked": tracked, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")}
	if tracked {
		updates["available_qty"] = gorm.Expr("quantity")
		updates["on_hold_qty"] = 0
		updates["committed_qty"] = 0
	}
	res := l.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("entity_id = ? AND inventory_tracked = ?", entityID, !tracked).
		UpdateColumns(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}

	item, err := l.load(ctx, entityID)
	if err != nil {
		return nil, false, err
	}
	return item, res.RowsAffected > 0, nil
}

func (l *ledger) ListInconsistent(ctx context.Context, limit int) ([]models.StockItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.StockItem
	err := l.db.WithContext(ctx).
		Where("inventory_tracked = ?", true).
		Where("quantity <> available_qty + on_hold_qty + committed_qty").
		Order("entity_id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
