package advancestatus

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

type service interface {
	AdvanceStatus(ctx context.Context, orderID int64, to order.Status) (ordersvc.OrderResponse, error)
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING COOKING READY_TO_SERVE SERVED BILLED PAID CANCELLED"`
}

func (r *advanceStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// AdvanceStatus moves an order to the requested status.
func AdvanceStatus(w http.ResponseWriter, r *http.Request, service service) {
	orderID, err := respond.PathID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := advanceStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, r, err)

		return
	}
	if err := req.Validate(); err != nil {
		respond.BadRequest(w, r, err)

		return
	}

	resp, err := service.AdvanceStatus(r.Context(), orderID, order.Status(req.Status))
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, resp)
}
