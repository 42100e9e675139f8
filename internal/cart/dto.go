package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// AddItemInput is the body of an add-to-cart request.
type AddItemInput struct {
	Ref inventory.StockableRef `json:"item" validate:"required"`
	Qty int                    `json:"qty" validate:"required,min=1"`
}

type CartItemDTO struct {
	ID         uuid.UUID             `json:"id"`
	EntityID   uuid.UUID             `json:"entity_id"`
	EntityKind enums.StockEntityKind `json:"entity_kind"`
	ProductID  uuid.UUID             `json:"product_id"`
	StoreID    uuid.UUID             `json:"store_id"`
	Qty        int                   `json:"qty"`
	Reserved   bool                  `json:"reserved"`
}

type CartDTO struct {
	ID            uuid.UUID        `json:"id"`
	BuyerStoreID  uuid.UUID        `json:"buyer_store_id"`
	SellerStoreID *uuid.UUID       `json:"seller_store_id,omitempty"`
	Status        enums.CartStatus `json:"status"`
	Items         []CartItemDTO    `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// AddItemResult reports whether the line was stored. When Added is false
// Available carries the units that can still be held.
type AddItemResult struct {
	Added     bool     `json:"added"`
	Available int      `json:"available"`
	Cart      *CartDTO `json:"cart"`
}

// LineResult is one line's outcome in a cart reservation. Available is set
// on the line that was refused.
type LineResult struct {
	EntityID   uuid.UUID             `json:"entity_id"`
	EntityKind enums.StockEntityKind `json:"entity_kind"`
	Qty        int                   `json:"qty"`
	Reserved   bool                  `json:"reserved"`
	Available  *int                  `json:"available,omitempty"`
}

type ReserveResult struct {
	CartID   uuid.UUID    `json:"cart_id"`
	Reserved bool         `json:"reserved"`
	Lines    []LineResult `json:"lines"`
}

func toCartDTO(cart *models.Cart) *CartDTO {
	if cart == nil {
		return nil
	}
	items := make([]CartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CartItemDTO{
			ID:         item.ID,
			EntityID:   item.EntityID,
			EntityKind: item.EntityKind,
			ProductID:  item.ProductID,
			StoreID:    item.StoreID,
			Qty:        item.Qty,
			Reserved:   item.Reserved,
		})
	}
	return &CartDTO{
		ID:            cart.ID,
		BuyerStoreID:  cart.BuyerStoreID,
		SellerStoreID: cart.SellerStoreID,
		Status:        cart.Status,
		Items:         items,
		CreatedAt:     cart.CreatedAt,
		UpdatedAt:     cart.UpdatedAt,
	}
}
