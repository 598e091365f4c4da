package imenuitemrepo

import (
	"context"

	"github.com/corray333/backend-labs/floor/internal/service/models/menuitem"
)

// IMenuItemRepository is an interface for menu lookups.
type IMenuItemRepository interface {
	// GetByIDs returns the menu items that exist among ids; missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []int64) ([]menuitem.MenuItem, error)
}
