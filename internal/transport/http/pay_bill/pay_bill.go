package paybill

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/floor/internal/service/services/billsvc"
	"github.com/corray333/backend-labs/floor/internal/transport/http/respond"
)

type service interface {
	Pay(ctx context.Context, billID int64) (billsvc.BillResponse, error)
}

func PayBill(w http.ResponseWriter, r *http.Request, service service) {
	billID, err := respond.PathID(r, "billID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	resp, err := service.Pay(r.Context(), billID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, resp)
}
