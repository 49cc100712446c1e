package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// secondaryIndexes covers filter and join columns that the model tags leave out.
var secondaryIndexes = []index{
	// Task listing filters
	{"tasks", "idx_tasks_status", "status"},
	{"tasks", "idx_tasks_priority", "priority"},
	{"tasks", "idx_tasks_created_at", "created_at"},

	// Membership lookups by user
	{"project_members", "idx_project_members_user_id", "user_id"},

	// Tag joins from the tag side
	{"task_tags", "idx_task_tags_tag_id", "tag_id"},
}

// AddIndexes adds performance-critical indexes missing from the schema.
func AddIndexes(db *gorm.DB, log *slog.Logger) error {
	migrator := db.Migrator()

	for _, idx := range secondaryIndexes {
		if migrator.HasIndex(idx.table, idx.name) {
			log.Debug("index already exists, skipping", "index", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("created index", "index", idx.name, "table", idx.table, "columns", idx.columns)
	}

	return nil
}
