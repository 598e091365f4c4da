package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
)

type service interface {
	GetOrder(ctx context.Context, orderID int64) (order.Order, error)
}

// GetOrder returns one order with its items.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := respond.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	o, err := service.GetOrder(r.Context(), orderID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
