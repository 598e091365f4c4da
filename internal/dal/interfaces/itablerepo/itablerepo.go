package itablerepo

import (
	"context"

	"github.com/corray333/backend-labs/floor/internal/service/models/table"
)

// ITableRepository is an interface for seat table lookups.
type ITableRepository interface {
	GetByID(ctx context.Context, id int64) (table.Table, error)
}
