// Package index implements the RegistryIndex: a queryable sqlite mirror
// of the append-only LoopRegistry JSONL file, rebuilt on demand so the
// dashboard and CLI can filter/sort without scanning the whole log.
//
// Invariant: the index is always a pure function of the JSONL file —
// index ⊆ f(jsonl). It is never a source of truth and is safe to delete
// and rebuild at any time.
package index

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Row is the sqlite-mapped shape of one LoopRegistry entry.
type Row struct {
	LoopID            string `gorm:"primaryKey"`
	Workspace         string
	StartedAt         time.Time `gorm:"index"`
	PromptFingerprint string
	Status            string `gorm:"index"`
}

func (Row) TableName() string { return "loop_registry_index" }

// Open connects to the sqlite database at dsn and ensures the schema
// exists.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open registry index: %w", err)
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("migrate registry index: %w", err)
	}
	return db, nil
}
