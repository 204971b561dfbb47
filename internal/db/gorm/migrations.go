package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
// embeddingDims adjusts the vector column when the configured provider does
// not produce the default 1536 dimensions.
func runMigrations(db *gorm.DB, embeddingDims int) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: pgvector extension and core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
					return err
				}
				if err := tx.AutoMigrate(
					&UserRow{},
					&CompanyRow{},
					&ProjectRow{},
					&WorkstreamRow{},
					&AchievementRow{},
				); err != nil {
					return err
				}
				if embeddingDims > 0 && embeddingDims != 1536 {
					alter := fmt.Sprintf("ALTER TABLE achievements ALTER COLUMN embedding TYPE vector(%d)", embeddingDims)
					if err := tx.Exec(alter).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("achievements", "workstreams", "projects", "companies", "users")
			},
		},

		// Migration 002: clustering run metadata
		{
			ID: "002_clustering_runs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ClusteringRunRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("clustering_runs")
			},
		},

		// Migration 003: usage budgets and ledger
		{
			ID: "003_usage",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserBudgetRow{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&UsageEntryRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("usage_entries", "user_budgets")
			},
		},
	})

	return m.Migrate()
}
