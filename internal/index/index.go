package index

import (
	"gorm.io/gorm"

	"github.com/hatloop/hatloop/internal/registry"
	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Rebuild truncates the index table and repopulates it from reg's
// current entries. It is the only way rows enter the index; there is no
// incremental-write path, keeping the index ⊆ f(jsonl) invariant trivial
// to maintain.
func Rebuild(db *gorm.DB, reg *registry.Registry) (int, error) {
	entries := reg.All()

	return len(entries), db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Row{}).Error; err != nil {
			return apperrors.NewIoError("truncate registry index", err)
		}
		for _, e := range entries {
			row := Row{
				LoopID:            e.LoopID,
				Workspace:         e.Workspace,
				StartedAt:         e.StartedAt,
				PromptFingerprint: e.PromptFingerprint,
				Status:            string(e.Status),
			}
			if err := tx.Create(&row).Error; err != nil {
				return apperrors.NewIoError("insert registry index row", err)
			}
		}
		return nil
	})
}

// ListActive returns every row whose status is "running", newest first.
func ListActive(db *gorm.DB) ([]Row, error) {
	var rows []Row
	err := db.Where("status = ?", string(registry.StatusRunning)).
		Order("started_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewIoError("query active loops", err)
	}
	return rows, nil
}

// Query filters the index by optional status and workspace-prefix
// criteria, for the dashboard's loop list endpoint.
func Query(db *gorm.DB, status, workspacePrefix string) ([]Row, error) {
	q := db.Model(&Row{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if workspacePrefix != "" {
		q = q.Where("workspace LIKE ?", workspacePrefix+"%")
	}
	var rows []Row
	if err := q.Order("started_at DESC").Find(&rows).Error; err != nil {
		return nil, apperrors.NewIoError("query registry index", err)
	}
	return rows, nil
}
