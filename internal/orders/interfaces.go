package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/pagination"
)

// ErrStaleWrite is returned when a compare-and-set update matched no row in
// one of the two locations.
var ErrStaleWrite = errors.New("order changed concurrently")

// Repository persists the order document in the global orders table and the
// customer_orders mirror. Writes that touch both must run inside one
// transaction obtained through WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, doc models.OrderDocument) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindCustomerOrder(ctx context.Context, customerID, orderID uuid.UUID) (*models.CustomerOrder, error)
	ListRestaurantOrders(ctx context.Context, restaurantID uuid.UUID, filter ListFilter) ([]models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, filter ListFilter) ([]models.CustomerOrder, error)

	// UpdateBoth writes the named columns of doc to both locations, guarded
	// by the status the caller read. It returns ErrStaleWrite unless exactly
	// one row matched in each table.
	UpdateBoth(ctx context.Context, doc models.OrderDocument, expected enums.OrderStatus, columns []string) error

	// ListUpdatedSince pages global orders in (updated_at, id) order. A nil
	// afterID starts at since; otherwise the page resumes after that row.
	ListUpdatedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.Order, error)
	FindCustomerOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.CustomerOrder, error)
	SaveMirror(ctx context.Context, doc models.OrderDocument) error
}

// ListFilter narrows order listings. Statuses empty means all.
type ListFilter struct {
	Statuses []enums.OrderStatus
	Limit    int
	Cursor   *pagination.Cursor
}

// Broadcaster fans committed order snapshots out to live observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, doc models.OrderDocument)
}
