package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OptionValue is one TYPE=value pair inside a combination.
type OptionValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// VariantCombination is a purchasable pick of one value per dimension. Its
// stock counters live on the StockItem keyed by the combination ID.
type VariantCombination struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID     `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_variant_combinations_product_key,priority:1"`
	CombinationKey string        `gorm:"column:combination_key;not null;uniqueIndex:ux_variant_combinations_product_key,priority:2"`
	OptionValues   []OptionValue `gorm:"column:option_values;type:jsonb;serializer:json;not null"`
	SKU            *string       `gorm:"column:sku"`
	PriceCents     *int          `gorm:"column:price_cents"`
	IsAvailable    bool          `gorm:"column:is_available;not null;default:true"`
	SortOrder      int           `gorm:"column:sort_order;not null;default:0"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *VariantCombination) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
