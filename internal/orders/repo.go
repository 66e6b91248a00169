package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, doc models.OrderDocument) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(&models.Order{OrderDocument: doc}).Error; err != nil {
		return err
	}
	return db.Create(&models.CustomerOrder{OrderDocument: doc}).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindCustomerOrder(ctx context.Context, customerID, orderID uuid.UUID) (*models.CustomerOrder, error) {
	var order models.CustomerOrder
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND id = ?", customerID, orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListRestaurantOrders(ctx context.Context, restaurantID uuid.UUID, filter ListFilter) ([]models.Order, error) {
	var rows []models.Order
	query := applyListFilter(r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, filter ListFilter) ([]models.CustomerOrder, error) {
	var rows []models.CustomerOrder
	query := applyListFilter(r.db.WithContext(ctx).Where("customer_id = ?", customerID), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyListFilter(query *gorm.DB, filter ListFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}
	return query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit))
}

func (r *repository) UpdateBoth(ctx context.Context, doc models.OrderDocument, expected enums.OrderStatus, columns []string) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Order{}).
		Where("id = ? AND status = ?", doc.ID, expected).
		Select(columns).
		Updates(&models.Order{OrderDocument: doc})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStaleWrite
	}

	res = db.Model(&models.CustomerOrder{}).
		Where("customer_id = ? AND id = ? AND status = ?", doc.CustomerID, doc.ID, expected).
		Select(columns).
		Updates(&models.CustomerOrder{OrderDocument: doc})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStaleWrite
	}
	return nil
}

func (r *repository) ListUpdatedSince(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.Order, error) {
	var rows []models.Order
	query := r.db.WithContext(ctx)
	if afterID == uuid.Nil {
		query = query.Where("updated_at >= ?", since)
	} else {
		query = query.Where("updated_at > ? OR (updated_at = ? AND id > ?)", since, since, afterID)
	}
	err := query.
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindCustomerOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.CustomerOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.CustomerOrder
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveMirror overwrites the mirror row with doc, inserting it when missing.
func (r *repository) SaveMirror(ctx context.Context, doc models.OrderDocument) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&models.CustomerOrder{OrderDocument: doc}).Error
}
