package markserved

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
)

type service interface {
	MarkServed(ctx context.Context, orderID int64) (ordersvc.OrderResponse, error)
}

func MarkServed(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := respond.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	resp, err := service.MarkServed(r.Context(), orderID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, resp)
}
