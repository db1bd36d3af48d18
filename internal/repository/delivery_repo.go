package repository

import (
	"context"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"gorm.io/gorm"
)

// DeliveryRepository is the delivery record store. Records are never deleted.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.DeliveryRecord) error
	CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error
	MarkDelivered(ctx context.Context, ids []string) error
	List(ctx context.Context) ([]domain.DeliveryRecord, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.DeliveryRecord, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryRecord) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

// CreateBatch inserts all records in a single transaction so a batch is either
// fully persisted or not at all.
func (r *GormDeliveryRepo) CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error {
	models := make([]DeliveryRecordModel, 0, len(records))
	modelIndexes := make([]int, 0, len(records))
	for i, d := range records {
		model := deliveryModelFromDomain(d)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&models, 100).Error
	})
	if err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		*records[idx] = *deliveryModelToDomain(&models[i])
	}

	return nil
}

// MarkDelivered flips delivered to true for ids in one statement.
// Rows already delivered are left untouched.
func (r *GormDeliveryRepo) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id IN ? AND delivered = ?", ids, false).
		Update("delivered", true).Error
}

func (r *GormDeliveryRepo) List(ctx context.Context) ([]domain.DeliveryRecord, error) {
	var models []DeliveryRecordModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return deliveryModelsToDomain(models), nil
}

func (r *GormDeliveryRepo) ListByRecipient(ctx context.Context, recipientID string) ([]domain.DeliveryRecord, error) {
	var models []DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return deliveryModelsToDomain(models), nil
}

func deliveryModelsToDomain(models []DeliveryRecordModel) []domain.DeliveryRecord {
	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}
	return records
}
