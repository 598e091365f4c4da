package checkout

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/billsvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
)

type service interface {
	Checkout(ctx context.Context, tableID int64) (billsvc.BillResponse, error)
}

// Checkout bills the served orders of a table.
func Checkout(w http.ResponseWriter, r *http.Request, service service) {
	tableID, err := respond.PathID(r, "tableID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	resp, err := service.Checkout(r.Context(), tableID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusCreated, resp)
}
