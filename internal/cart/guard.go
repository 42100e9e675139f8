package cart

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

// Choices offered to a buyer whose cart holds another seller's items.
const (
	ChoiceKeepCurrentCart = "keep_current_cart"
	ChoiceStartNewCart    = "start_new_cart"
)

// SellerConflictError is returned when a candidate line belongs to a
// different seller than the lines already in the cart.
type SellerConflictError struct {
	CartID            uuid.UUID
	CurrentSellerID   uuid.UUID
	RequestedSellerID uuid.UUID
}

func (e *SellerConflictError) Error() string {
	return fmt.Sprintf("cart %s holds items from seller %s, not %s", e.CartID, e.CurrentSellerID, e.RequestedSellerID)
}

// AppError is the conflict surfaced to API callers.
func (e *SellerConflictError) AppError() *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, e, "cart holds items from another seller").
		WithDetails(map[string]any{
			"cart_id":             e.CartID.String(),
			"current_seller_id":   e.CurrentSellerID.String(),
			"requested_seller_id": e.RequestedSellerID.String(),
			"choices":             []string{ChoiceKeepCurrentCart, ChoiceStartNewCart},
		})
}

// Candidate is a line about to be added. Qty is the increment, not the
// resulting line quantity.
type Candidate struct {
	EntityID uuid.UUID
	StoreID  uuid.UUID
	Qty      int
}

// Guard keeps carts single-seller and lines under the quantity cap. It is
// consulted before any stock check.
type Guard struct {
	maxLineQty int
}

func NewGuard(maxLineQty int) *Guard {
	return &Guard{maxLineQty: maxLineQty}
}

func (g *Guard) MaxLineQty() int {
	return g.maxLineQty
}

// Check validates candidate against the cart and returns the resulting line
// quantity.
func (g *Guard) Check(cart *models.Cart, candidate Candidate) (int, error) {
	if candidate.Qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if seller := currentSeller(cart); seller != uuid.Nil && seller != candidate.StoreID {
		return 0, &SellerConflictError{
			CartID:            cart.ID,
			CurrentSellerID:   seller,
			RequestedSellerID: candidate.StoreID,
		}
	}
	lineQty := candidate.Qty + lineQuantity(cart, candidate.EntityID)
	if err := g.CheckLineQty(lineQty); err != nil {
		return 0, err
	}
	return lineQty, nil
}

// CheckLineQty applies the per-line cap alone.
func (g *Guard) CheckLineQty(qty int) error {
	if g.maxLineQty > 0 && qty > g.maxLineQty {
		return pkgerrors.New(pkgerrors.CodeValidation, "line quantity exceeds the per-line limit").
			WithDetails(map[string]any{"max_line_qty": g.maxLineQty, "requested_qty": qty})
	}
	return nil
}

// currentSeller is the cart's seller, or uuid.Nil while the cart is empty.
func currentSeller(cart *models.Cart) uuid.UUID {
	if cart == nil || len(cart.Items) == 0 {
		return uuid.Nil
	}
	if cart.SellerStoreID != nil {
		return *cart.SellerStoreID
	}
	return cart.Items[0].StoreID
}

func lineQuantity(cart *models.Cart, entityID uuid.UUID) int {
	if cart == nil {
		return 0
	}
	for _, item := range cart.Items {
		if item.EntityID == entityID {
			return item.Qty
		}
	}
	return 0
}
