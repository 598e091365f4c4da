package getbill

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/billsvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
)

type service interface {
	GetPendingBillForTable(ctx context.Context, tableID int64) (billsvc.BillResponse, error)
}

// GetPendingBill returns the newest unpaid bill of a table.
func GetPendingBill(w http.ResponseWriter, r *http.Request, service service) {
	tableID, err := respond.PathID(r, "tableID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	resp, err := service.GetPendingBillForTable(r.Context(), tableID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, resp)
}
