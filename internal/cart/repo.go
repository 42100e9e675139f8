package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// Repository persists carts and their lines. Writes that depend on the
// cart's current seller or status are compare-and-set updates and report
// whether they matched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cart *models.Cart) error
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ClaimSeller(ctx context.Context, cartID uuid.UUID, current *uuid.UUID, seller uuid.UUID) (bool, error)
	ResetSeller(ctx context.Context, cartID uuid.UUID, seller uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus) (bool, error)
	IncrementItem(ctx context.Context, item *models.CartItem, maxQty int) (bool, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	MarkItemsReserved(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID, reserved bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Omit("Items").Create(cart).Error
}

func (r *repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", cartID).
		Take(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClaimSeller sets the seller of an active cart only while the stored seller
// still equals current (nil meaning unset).
func (r *repository) ClaimSeller(ctx context.Context, cartID uuid.UUID, current *uuid.UUID, seller uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive)
	if current == nil {
		q = q.Where("seller_store_id IS NULL")
	} else {
		q = q.Where("seller_store_id = ?", *current)
	}
	res := q.UpdateColumns(map[string]any{
		"seller_store_id": seller,
		"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
	})
	return res.RowsAffected > 0, res.Error
}

// ResetSeller replaces the seller of an active cart whatever it was.
func (r *repository) ResetSeller(ctx context.Context, cartID uuid.UUID, seller uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		UpdateColumns(map[string]any{
			"seller_store_id": seller,
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) TransitionStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, from).
		UpdateColumns(map[string]any{
			"status":     to,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected > 0, res.Error
}

// IncrementItem adds item.Qty to the line, creating it on first add. It
// reports false when the resulting quantity would exceed maxQty; zero
// disables the cap.
func (r *repository) IncrementItem(ctx context.Context, item *models.CartItem, maxQty int) (bool, error) {
	ok, err := r.increment(ctx, item, maxQty)
	if err != nil || ok {
		return ok, err
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "entity_id"}},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// A concurrent add created the line first.
	return r.increment(ctx, item, maxQty)
}

func (r *repository) increment(ctx context.Context, item *models.CartItem, maxQty int) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND entity_id = ?", item.CartID, item.EntityID)
	if maxQty > 0 {
		q = q.Where("qty + ? <= ?", item.Qty, maxQty)
	}
	res := q.UpdateColumns(map[string]any{
		"qty":        gorm.Expr("qty + ?", item.Qty),
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

func (r *repository) MarkItemsReserved(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID, reserved bool) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND id IN ?", cartID, itemIDs).
		UpdateColumns(map[string]any{
			"reserved":   reserved,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
