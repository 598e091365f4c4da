package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, req ordersvc.CreateOrderRequest) (ordersvc.OrderResponse, error)
}

// ItemRequest represents one line of an order request. It is shared with the replace items endpoint.
type ItemRequest struct {
	MenuItemID      int64  `json:"menuItemId"      validate:"gt=0"`
	Quantity        int    `json:"quantity"        validate:"gt=0,lte=100"`
	SpecialRequests string `json:"specialRequests" validate:"max=500"`
}

// ToModel converts request items to service items.
func ToModel(items []ItemRequest) []ordersvc.ItemRequest {
	result := make([]ordersvc.ItemRequest, 0, len(items))
	for _, item := range items {
		result = append(result, ordersvc.ItemRequest{
			MenuItemID:      item.MenuItemID,
			Quantity:        item.Quantity,
			SpecialRequests: item.SpecialRequests,
		})
	}

	return result
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	TableID int64         `json:"tableId" validate:"gt=0"`
	Items   []ItemRequest `json:"items"   validate:"required,min=1,dive"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// CreateOrder handles the create order request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for create order", "error", err)
		respond.BadRequest(w, r, err)

		return
	}

	if err := req.Validate(); err != nil {
		slog.Error("Error validating request body for create order", "error", err)
		respond.BadRequest(w, r, err)

		return
	}

	resp, err := service.CreateOrder(r.Context(), ordersvc.CreateOrderRequest{
		TableID: req.TableID,
		Items:   ToModel(req.Items),
	})
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusCreated, resp)
}
