package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VariantOption is one value of one dimension (e.g. COLOR=Red) of a product.
type VariantOption struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_variant_options_product_type_value,priority:1"`
	Type        string    `gorm:"column:type;not null;uniqueIndex:ux_variant_options_product_type_value,priority:2"`
	Value       string    `gorm:"column:value;not null;uniqueIndex:ux_variant_options_product_type_value,priority:3"`
	DisplayName string    `gorm:"column:display_name;not null"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (o *VariantOption) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
