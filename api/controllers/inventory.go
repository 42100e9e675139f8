package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type qtyRequest struct {
	Qty int `json:"qty" validate:"required,min=1"`
}

type totalRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type trackingRequest struct {
	Tracked *bool `json:"inventory_tracked" validate:"required"`
}

type reserveResponse struct {
	EntityID uuid.UUID `json:"entity_id"`
	Qty      int       `json:"qty"`
	Reserved bool      `json:"reserved"`
}

// InventoryLevel returns the counters of one stock entity.
func InventoryLevel(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID, err := validators.URLParamUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.Level(r.Context(), entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

func InventoryCheck(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return withQty(logg, func(ctx context.Context, entityID uuid.UUID, qty int) (any, error) {
		return svc.CheckAvailability(ctx, entityID, qty)
	})
}

// InventoryReserve answers 200 with reserved=false when stock is short; that
// is an outcome, not an error.
func InventoryReserve(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return withQty(logg, func(ctx context.Context, entityID uuid.UUID, qty int) (any, error) {
		ok, err := svc.Reserve(ctx, entityID, qty)
		if err != nil {
			return nil, err
		}
		return reserveResponse{EntityID: entityID, Qty: qty, Reserved: ok}, nil
	})
}

func InventoryCommit(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return withQty(logg, func(ctx context.Context, entityID uuid.UUID, qty int) (any, error) {
		if err := svc.Commit(ctx, entityID, qty); err != nil {
			return nil, err
		}
		return svc.Level(ctx, entityID)
	})
}

func InventoryRelease(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return withQty(logg, func(ctx context.Context, entityID uuid.UUID, qty int) (any, error) {
		if err := svc.Release(ctx, entityID, qty); err != nil {
			return nil, err
		}
		return svc.Level(ctx, entityID)
	})
}

// InventoryAdjustTotal sets the seller-entered total.
func InventoryAdjustTotal(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID, err := validators.URLParamUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload totalRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdjustTotal(r.Context(), entityID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func InventorySetTracking(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID, err := validators.URLParamUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload trackingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.SetTracking(r.Context(), entityID, *payload.Tracked)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

type inconsistentLister interface {
	ListInconsistent(ctx context.Context, limit int) ([]models.StockItem, error)
}

// InventoryInconsistent lists tracked rows whose counters do not add up.
func InventoryInconsistent(ledger inconsistentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := ledger.ListInconsistent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inconsistent stock"))
			return
		}
		levels := make([]inventory.Level, 0, len(items))
		for _, item := range items {
			levels = append(levels, inventory.Level{
				EntityID:   item.EntityID,
				EntityKind: item.EntityKind,
				Quantity:   item.Quantity,
				Available:  item.AvailableQty,
				OnHold:     item.OnHoldQty,
				Committed:  item.CommittedQty,
				Tracked:    item.InventoryTracked,
			})
		}
		responses.WriteSuccess(w, levels)
	}
}

func withQty(logg *logger.Logger, fn func(ctx context.Context, entityID uuid.UUID, qty int) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID, err := validators.URLParamUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload qtyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := fn(r.Context(), entityID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
