package ibillrepo

import (
	"context"

	"github.com/corray333/backend-labs/floor/internal/service/models/bill"
)

// IBillRepository is an interface for bill repository.
type IBillRepository interface {
	Insert(ctx context.Context, b bill.Bill) (bill.Bill, error)
	// Update persists status and payment time of an existing bill.
	Update(ctx context.Context, b bill.Bill) error
	GetByID(ctx context.Context, id int64, forUpdate bool) (bill.Bill, error)
	// GetLatestByTable returns the most recently created bill of a table in the given status.
	GetLatestByTable(ctx context.Context, tableID int64, status bill.Status) (bill.Bill, error)
}
