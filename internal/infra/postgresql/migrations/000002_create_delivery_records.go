package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDeliveryRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_delivery_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryRecordModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE delivery_records DROP CONSTRAINT IF EXISTS fk_delivery_records_recipient`,
				`ALTER TABLE delivery_records ADD CONSTRAINT fk_delivery_records_recipient FOREIGN KEY (recipient_id) REFERENCES recipients (id)`,
				`CREATE INDEX IF NOT EXISTS idx_delivery_records_created_at ON delivery_records (created_at DESC)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryRecordModel{})
		},
	}
}
