package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
)

// Repository manages persistence for loyalty ledger events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LoyaltyLedgerEvent) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LoyaltyLedgerEvent, error)
	SumByCustomer(ctx context.Context, customerID uuid.UUID) (int, error)
	// LockCustomer serializes ledger writes for one customer until the
	// surrounding transaction ends.
	LockCustomer(ctx context.Context, customerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LoyaltyLedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LoyaltyLedgerEvent, error) {
	var events []models.LoyaltyLedgerEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) SumByCustomer(ctx context.Context, customerID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.LoyaltyLedgerEvent{}).
		Select("COALESCE(SUM(points), 0)").
		Where("customer_id = ?", customerID).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// LockCustomer takes a transaction-scoped advisory lock on postgres. SQLite
// already serializes writers, so it is a no-op there.
func (r *repository) LockCustomer(ctx context.Context, customerID uuid.UUID) error {
	if r.db.Dialector == nil || r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", "loyalty:"+customerID.String()).Error
}
