package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsOwnerNames(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&shelf.Book{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	rows := []shelf.Book{
		{BookID: "anonymous-owner", Title: "Dune", OwnerEmail: "reader@example.com", CreatedAtSeconds: 1, UpdatedAtSeconds: 1},
		{BookID: "named-owner", Title: "Emma", OwnerEmail: "jane@example.com", OwnerName: "Jane", CreatedAtSeconds: 2, UpdatedAtSeconds: 2},
		{BookID: "no-owner", Title: "Ulysses", CreatedAtSeconds: 3, UpdatedAtSeconds: 3},
	}
	if err := database.Create(&rows).Error; err != nil {
		testContext.Fatalf("failed to insert books: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	expected := map[string]string{"anonymous-owner": "reader", "named-owner": "Jane", "no-owner": ""}
	for bookID, wantName := range expected {
		var stored shelf.Book
		if err := database.Where("book_id = ?", bookID).Take(&stored).Error; err != nil {
			testContext.Fatalf("failed to reload %s: %v", bookID, err)
		}
		if stored.OwnerName != wantName {
			testContext.Fatalf("expected %s owner name %q, got %q", bookID, wantName, stored.OwnerName)
		}
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillOwnerNames).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected re-run to be a no-op: %v", err)
	}
}

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "bookhaven.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"books", "book_comments", "accounts", "account_identities", "account_refresh_tokens", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s", table)
		}
	}

	if _, err := OpenSQLite("", nil); err == nil {
		testContext.Fatalf("expected error for empty path")
	}
}
