package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/logitrack/services/warehouse/internal/models"
)

// ErrRecordNotFound is returned when no delivery record exists for an order
var ErrRecordNotFound = errors.New("delivery record not found")

// DeliveryRepository provides access to delivery records
type DeliveryRepository interface {
	Create(ctx context.Context, record *models.DeliveryRecord) error
	FindByOrderID(ctx context.Context, orderID string) (*models.DeliveryRecord, error)
	Save(ctx context.Context, record *models.DeliveryRecord) error
	WithTransaction(ctx context.Context, fn func(txRepo DeliveryRepository) error) error
}

type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a gorm-backed delivery repository
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create inserts a new delivery record
func (r *deliveryRepository) Create(ctx context.Context, record *models.DeliveryRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to create delivery record")
	}
	return nil
}

// FindByOrderID loads the delivery record for an order
func (r *deliveryRepository) FindByOrderID(ctx context.Context, orderID string) (*models.DeliveryRecord, error) {
	var record models.DeliveryRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to load delivery record")
	}
	return &record, nil
}

// Save persists changes to an existing delivery record
func (r *deliveryRepository) Save(ctx context.Context, record *models.DeliveryRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return errors.Wrap(err, "failed to save delivery record")
	}
	return nil
}

// WithTransaction runs fn against a transactional repository so a status
// write and its side-effect timestamp land atomically
func (r *deliveryRepository) WithTransaction(ctx context.Context, fn func(txRepo DeliveryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&deliveryRepository{db: tx})
	})
}
