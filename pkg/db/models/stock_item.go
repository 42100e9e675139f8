package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// StockItem is the ledger row for one stockable entity. When tracked,
// Quantity == AvailableQty + OnHoldQty + CommittedQty.
type StockItem struct {
	EntityID         uuid.UUID             `gorm:"column:entity_id;type:uuid;primaryKey"`
	EntityKind       enums.StockEntityKind `gorm:"column:entity_kind;type:varchar(32);not null"`
	Quantity         int                   `gorm:"column:quantity;not null;default:0;check:chk_stock_items_quantity,quantity >= 0"`
	AvailableQty     int                   `gorm:"column:available_qty;not null;default:0;check:chk_stock_items_available,available_qty >= 0"`
	OnHoldQty        int                   `gorm:"column:on_hold_qty;not null;default:0;check:chk_stock_items_on_hold,on_hold_qty >= 0"`
	CommittedQty     int                   `gorm:"column:committed_qty;not null;default:0;check:chk_stock_items_committed,committed_qty >= 0"`
	InventoryTracked bool                  `gorm:"column:inventory_tracked;not null;default:true"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockItem) TableName() string { return "stock_items" }

// Consistent reports whether the counters of a tracked row add up.
func (s StockItem) Consistent() bool {
	if !s.InventoryTracked {
		return true
	}
	return s.Quantity == s.AvailableQty+s.OnHoldQty+s.CommittedQty
}
