package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a seller listing. Products with variants hold stock on their
// combinations instead of on themselves.
type Product struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	StoreID      uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index;uniqueIndex:ux_products_store_sku,priority:1"`
	SKU          string               `gorm:"column:sku;not null;uniqueIndex:ux_products_store_sku,priority:2"`
	Title        string               `gorm:"column:title;not null"`
	PriceCents   int                  `gorm:"column:price_cents;not null"`
	HasVariants  bool                 `gorm:"column:has_variants;not null;default:false"`
	Options      []VariantOption      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Combinations []VariantCombination `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
