package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"gorm.io/gorm"
)

// RecipientFilter narrows a recipient listing. Zero values mean "any".
type RecipientFilter struct {
	OptedIn          *bool
	AnniversaryMonth time.Month
	AnniversaryDay   int
}

type RecipientRepository interface {
	Create(ctx context.Context, r *domain.Recipient) error
	GetByID(ctx context.Context, id string) (*domain.Recipient, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Recipient, error)
	List(ctx context.Context, filter RecipientFilter) ([]domain.Recipient, error)
	UpdateLastNotified(ctx context.Context, ids []string, at time.Time) error
	SetOptedIn(ctx context.Context, id string, optedIn bool) error
}

type GormRecipientRepo struct {
	db *gorm.DB
}

func NewGormRecipientRepo(db *gorm.DB) *GormRecipientRepo {
	return &GormRecipientRepo{db: db}
}

func (r *GormRecipientRepo) Create(ctx context.Context, rec *domain.Recipient) error {
	model := recipientModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	if rec != nil {
		*rec = *recipientModelToDomain(model)
	}
	return nil
}

func (r *GormRecipientRepo) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	var model RecipientModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipientModelToDomain(&model), nil
}

// GetByIDs resolves a set of recipients in one query. Unknown ids are omitted.
func (r *GormRecipientRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []RecipientModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return recipientModelsToDomain(models), nil
}

func (r *GormRecipientRepo) List(ctx context.Context, filter RecipientFilter) ([]domain.Recipient, error) {
	query := r.db.WithContext(ctx).Model(&RecipientModel{})

	if filter.OptedIn != nil {
		query = query.Where("opted_in = ?", *filter.OptedIn)
	}
	if filter.AnniversaryMonth != 0 {
		query = query.Where("EXTRACT(MONTH FROM anniversary) = ?", int(filter.AnniversaryMonth))
	}
	if filter.AnniversaryDay != 0 {
		query = query.Where("EXTRACT(DAY FROM anniversary) = ?", filter.AnniversaryDay)
	}

	var models []RecipientModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return recipientModelsToDomain(models), nil
}

func (r *GormRecipientRepo) UpdateLastNotified(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("id IN ?", ids).
		Update("last_notified_at", at).Error
}

func (r *GormRecipientRepo) SetOptedIn(ctx context.Context, id string, optedIn bool) error {
	result := r.db.WithContext(ctx).
		Model(&RecipientModel{}).
		Where("id = ?", id).
		Update("opted_in", optedIn)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func recipientModelsToDomain(models []RecipientModel) []domain.Recipient {
	recipients := make([]domain.Recipient, 0, len(models))
	for i := range models {
		recipients = append(recipients, *recipientModelToDomain(&models[i]))
	}
	return recipients
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLSTATE 23505 when the dialector does not translate errors.
	return strings.Contains(err.Error(), "23505")
}
