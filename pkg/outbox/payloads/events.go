package payloads

import (
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
	"github.com/google/uuid"
)

// StockLevel is the counter snapshot after the change was applied.
type StockLevel struct {
	Quantity  int  `json:"quantity"`
	Available int  `json:"available"`
	OnHold    int  `json:"on_hold"`
	Committed int  `json:"committed"`
	Tracked   bool `json:"tracked"`
}

// StockMovedEvent covers reserve, commit and release.
type StockMovedEvent struct {
	EntityID   uuid.UUID             `json:"entity_id"`
	EntityKind enums.StockEntityKind `json:"entity_kind"`
	Qty        int                   `json:"qty"`
	Level      StockLevel            `json:"level"`
}

// StockAdjustedEvent is emitted when a seller edits the total on hand.
type StockAdjustedEvent struct {
	EntityID         uuid.UUID             `json:"entity_id"`
	EntityKind       enums.StockEntityKind `json:"entity_kind"`
	PreviousQuantity int                   `json:"previous_quantity"`
	RequestedQty     int                   `json:"requested_quantity"`
	Shortfall        int                   `json:"shortfall,omitempty"`
	Level            StockLevel            `json:"level"`
}

// StockTrackingChangedEvent is emitted when inventory tracking is toggled.
type StockTrackingChangedEvent struct {
	EntityID   uuid.UUID             `json:"entity_id"`
	EntityKind enums.StockEntityKind `json:"entity_kind"`
	Tracked    bool                  `json:"tracked"`
	Level      StockLevel            `json:"level"`
}

// Entity reports which stock entity an event describes.
func (e StockMovedEvent) Entity() uuid.UUID { return e.EntityID }

func (e StockAdjustedEvent) Entity() uuid.UUID { return e.EntityID }

func (e StockTrackingChangedEvent) Entity() uuid.UUID { return e.EntityID }
