package repository

import (
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"gorm.io/gorm"
)

// RecipientModel is the persistence model for the recipients table.
type RecipientModel struct {
	ID             string     `gorm:"type:uuid;primaryKey"`
	Name           string     `gorm:"type:text;not null"`
	Email          string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	OptedIn        bool       `gorm:"not null;default:true"`
	LastNotifiedAt *time.Time `gorm:"type:timestamptz"`
	Anniversary    *time.Time `gorm:"type:date"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (RecipientModel) TableName() string {
	return "recipients"
}

// DeliveryRecordModel is the persistence model for delivery_records.
type DeliveryRecordModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	RecipientID string `gorm:"type:uuid;not null;index"`
	Subject     string `gorm:"type:text;not null"`
	Body        string `gorm:"type:text;not null"`
	Delivered   bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DeliveryRecordModel) TableName() string {
	return "delivery_records"
}

func recipientModelFromDomain(r *domain.Recipient) *RecipientModel {
	if r == nil {
		return nil
	}

	return &RecipientModel{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		OptedIn:        r.OptedIn,
		LastNotifiedAt: r.LastNotifiedAt,
		Anniversary:    r.Anniversary,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func recipientModelToDomain(m *RecipientModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		OptedIn:        m.OptedIn,
		LastNotifiedAt: m.LastNotifiedAt,
		Anniversary:    m.Anniversary,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func deliveryModelFromDomain(d *domain.DeliveryRecord) *DeliveryRecordModel {
	if d == nil {
		return nil
	}

	return &DeliveryRecordModel{
		ID:          d.ID,
		RecipientID: d.RecipientID,
		Subject:     d.Subject,
		Body:        d.Body,
		Delivered:   d.Delivered,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryRecordModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		Subject:     m.Subject,
		Body:        m.Body,
		Delivered:   m.Delivered,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
