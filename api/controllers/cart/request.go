package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/api/responses"
	"github.com/angelmondragon/packfinderz-inventory/api/validators"
	cartsvc "github.com/angelmondragon/packfinderz-inventory/internal/cart"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
)

type addFunc func(ctx context.Context, cartID uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.AddItemResult, error)

func addHandler(logg *logger.Logger, add addFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.URLParamUUID(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartsvc.AddItemInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := add(r.Context(), cartID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
