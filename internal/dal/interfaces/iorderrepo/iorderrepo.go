package iorder

import (
	"context"

	"github.com/corray333/backend-labs/floor/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	// Update persists status, bill reference and update time of an existing order.
	Update(ctx context.Context, o order.Order) error
	// GetByID returns dalerr.ErrNotFound when the order does not exist.
	GetByID(ctx context.Context, id int64, forUpdate bool) (order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}
