package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
)

// CreateProductInput creates a simple product with its own stock row.
type CreateProductInput struct {
	StoreID    uuid.UUID `json:"store_id" validate:"required"`
	SKU        string    `json:"sku" validate:"required,max=64"`
	Title      string    `json:"title" validate:"required,max=200"`
	PriceCents int       `json:"price_cents" validate:"gte=0"`
	Quantity   int       `json:"quantity" validate:"gte=0"`
	Tracked    *bool     `json:"inventory_tracked,omitempty"`
}

// ProductDTO is the read shape of a product. Stock is set for simple
// products only; variant products carry stock per combination.
type ProductDTO struct {
	ID          uuid.UUID        `json:"id"`
	StoreID     uuid.UUID        `json:"store_id"`
	SKU         string           `json:"sku"`
	Title       string           `json:"title"`
	PriceCents  int              `json:"price_cents"`
	HasVariants bool             `json:"has_variants"`
	Stock       *inventory.Level `json:"stock,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TrackingResult lists the stock rows a product-level toggle touched.
type TrackingResult struct {
	ProductID uuid.UUID         `json:"product_id"`
	Tracked   bool              `json:"inventory_tracked"`
	Levels    []inventory.Level `json:"levels"`
}

func toDTO(p *models.Product, stock *inventory.Level) *ProductDTO {
	return &ProductDTO{
		ID:          p.ID,
		StoreID:     p.StoreID,
		SKU:         p.SKU,
		Title:       p.Title,
		PriceCents:  p.PriceCents,
		HasVariants: p.HasVariants,
		Stock:       stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
