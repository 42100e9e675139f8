package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

// Cart holds lines from exactly one seller. SellerStoreID is nil while empty.
type Cart struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BuyerStoreID  uuid.UUID        `gorm:"column:buyer_store_id;type:uuid;not null;index"`
	SellerStoreID *uuid.UUID       `gorm:"column:seller_store_id;type:uuid"`
	Status        enums.CartStatus `gorm:"column:status;type:varchar(16);not null;default:'active'"`
	Items         []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem is one line of a cart, keyed by the stockable entity it draws from.
type CartItem struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CartID     uuid.UUID             `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_entity,priority:1"`
	EntityID   uuid.UUID             `gorm:"column:entity_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_entity,priority:2"`
	EntityKind enums.StockEntityKind `gorm:"column:entity_kind;type:varchar(32);not null"`
	ProductID  uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	StoreID    uuid.UUID             `gorm:"column:store_id;type:uuid;not null"`
	Qty        int                   `gorm:"column:qty;not null;check:chk_cart_items_qty,qty > 0"`
	Reserved   bool                  `gorm:"column:reserved;not null;default:false"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
