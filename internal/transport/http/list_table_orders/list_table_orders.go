package listtableorders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
	"github.com/corray333/backend-labs/floor/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
	"github.com/gorilla/schema"
)

type service interface {
	ListTableOrders(ctx context.Context, req ordersvc.ListTableOrdersRequest) ([]order.Order, error)
}

type queryTableOrdersRequest struct {
	Statuses     []string `schema:"status,omitempty"`
	UnbilledOnly bool     `schema:"unbilledOnly,omitempty"`
}

func (q *queryTableOrdersRequest) ToModel(tableID int64) (ordersvc.ListTableOrdersRequest, error) {
	req := ordersvc.ListTableOrdersRequest{TableID: tableID, UnbilledOnly: q.UnbilledOnly}
	for _, raw := range q.Statuses {
		st, err := order.ParseStatus(raw)
		if err != nil {
			return ordersvc.ListTableOrdersRequest{}, err
		}
		req.Statuses = append(req.Statuses, st)
	}

	return req, nil
}

// ListTableOrders lists the orders of a table, optionally filtered by status and billing.
func ListTableOrders(w http.ResponseWriter, r *http.Request, service service) {
	tableID, err := respond.PathID(r, "tableID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	decoder := schema.NewDecoder()
	query := &queryTableOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		slog.Error("Error decoding request", "error", err)
		respond.BadRequest(w, r, err)

		return
	}

	req, err := query.ToModel(tableID)
	if err != nil {
		respond.BadRequest(w, r, err)

		return
	}

	orders, err := service.ListTableOrders(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, orders)
}
