package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// The daily cohort query filters on month and day only.
func addRecipientsAnniversaryIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_recipients_anniversary_index",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_recipients_anniversary_month_day ON recipients ((EXTRACT(MONTH FROM anniversary)), (EXTRACT(DAY FROM anniversary))) WHERE anniversary IS NOT NULL AND deleted_at IS NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_recipients_anniversary_month_day`,
			})
		},
	}
}
