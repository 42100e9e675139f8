package cart

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	cartsvc "github.com/angelmondragon/packfinderz-inventory/internal/cart"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type createCartRequest struct {
	BuyerStoreID uuid.UUID `json:"buyer_store_id" validate:"required"`
}

func CartCreate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.CreateCart(r.Context(), payload.BuyerStoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, cart)
	}
}

func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.URLParamUUID(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.GetCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}

// CartAddItem answers 409 with the two buyer choices on a seller conflict,
// and 200 with added=false when stock is short.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return addHandler(logg, svc.AddItem)
}

// CartStartNew replaces the cart's lines with the posted item.
func CartStartNew(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return addHandler(logg, svc.StartNewCart)
}

func CartReserve(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.URLParamUUID(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ReserveCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CartRelease(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.URLParamUUID(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.ReleaseCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cart)
	}
}
