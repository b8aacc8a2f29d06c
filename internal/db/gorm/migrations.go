package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrations lists every schema migration in order. IDs are never reused.
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		// Migration 001: FAQ entries
		{
			ID: "001_faq_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&FaqEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("faq_entries")
			},
		},

		// Migration 002: Learning patterns
		{
			ID: "002_learning_patterns",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&LearningPattern{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("learning_patterns")
			},
		},

		// Migration 003: Interaction snapshots and processed markers
		{
			ID: "003_interactions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&ChatSnapshot{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&TicketSnapshot{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ProcessedInteraction{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("chat_snapshots", "ticket_snapshots", "processed_interactions")
			},
		},

		// Migration 004: Audit trail
		{
			ID: "004_audit_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&AuditLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("audit_logs")
			},
		},

		// Migration 005: Settings store
		{
			ID: "005_learning_settings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&LearningSetting{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("learning_settings")
			},
		},

		// Migration 006: Knowledge-base articles
		{
			ID: "006_kb_articles",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&KBArticle{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("kb_articles")
			},
		},

		// Migration 007: Review-queue query indexes
		{
			ID: "007_review_queue_indexes",
			Migrate: func(tx *gorm.DB) error {
				sqls := []string{
					// Review queue default listing: status filter, newest first
					`CREATE INDEX IF NOT EXISTS idx_faq_status_created ON faq_entries(status, created_at DESC)`,
					// Keyword containment lookups for category assignment
					`CREATE INDEX IF NOT EXISTS idx_faq_keywords_gin ON faq_entries USING GIN (keywords)`,
					// Stale pattern cleanup
					`CREATE INDEX IF NOT EXISTS idx_patterns_stale ON learning_patterns(last_seen_at, frequency)`,
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				sqls := []string{
					"DROP INDEX IF EXISTS idx_faq_status_created",
					"DROP INDEX IF EXISTS idx_faq_keywords_gin",
					"DROP INDEX IF EXISTS idx_patterns_stale",
				}
				for _, s := range sqls {
					if err := tx.Exec(s).Error; err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(gdb *gorm.DB) error {
	m := gormigrate.New(gdb, gormigrate.DefaultOptions, migrations())
	return m.Migrate()
}
