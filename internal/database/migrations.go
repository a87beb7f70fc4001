package database

import (
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillOwnerNames = "2026-10-01_backfill_owner_names"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillOwnerNames, apply: backfillOwnerNames},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if txErr != nil {
			return txErr
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillOwnerNames gives records created without an owner name the local
// part of the owner's email, so every card can show an attribution.
func backfillOwnerNames(db *gorm.DB) error {
	var rows []shelf.Book
	if err := db.Where("user_name = '' AND user_email <> ''").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		name := row.OwnerEmail
		if at := strings.Index(name, "@"); at > 0 {
			name = name[:at]
		}
		if err := db.Model(&shelf.Book{}).Where("book_id = ?", row.BookID).Update("user_name", name).Error; err != nil {
			return err
		}
	}
	return nil
}
