package replaceitems

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	createorder "github.com/corray333/backend-labs/floor/internal/transport/http/create_order"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

type service interface {
	ReplaceItems(ctx context.Context, orderID int64, items []ordersvc.ItemRequest) (ordersvc.OrderResponse, error)
}

type replaceItemsRequest struct {
	Items []createorder.ItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r *replaceItemsRequest) Validate() error {
	return validator.New().Struct(r)
}

// ReplaceItems swaps the item set of an order.
func ReplaceItems(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := respond.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := replaceItemsRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for replace items", "error", err)
		respond.BadRequest(w, r, err)

		return
	}
	if err := req.Validate(); err != nil {
		respond.BadRequest(w, r, err)

		return
	}

	resp, err := service.ReplaceItems(r.Context(), orderID, createorder.ToModel(req.Items))
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, resp)
}
