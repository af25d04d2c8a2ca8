// Package quota implements §4.F: per-room file-count and byte quotas.
package quota

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
)

// Usage is the current projected-usage snapshot a room carries.
type Usage struct {
	FileCount      int
	TotalSizeBytes int64
	MaxFiles       int
	MaxTotalBytes  int64
}

// Check validates the projected file_count+1 and total_size_bytes+incoming
// against the caps, per §3 invariant 8 and §4.F. It never touches the
// database: callers read Usage from whatever snapshot (initiate-time room
// row, or a freshly reloaded row at complete-time) they hold.
func Check(u Usage, incomingBytes int64) error {
	if u.FileCount+1 > u.MaxFiles {
		return apierr.PayloadTooBigf("room has reached its maximum file count")
	}
	if u.TotalSizeBytes+incomingBytes > u.MaxTotalBytes {
		return apierr.PayloadTooBigf("room has reached its maximum total size")
	}
	return nil
}

// Engine wraps Check with a database read, for the two call sites §4.F
// names explicitly: Initiate (cheap pre-check) and Complete (recheck
// against a racing concurrent upload).
type Engine struct {
	DB *gorm.DB
}

// EnsureQuota reads the room's current usage and validates the projection.
func (e *Engine) EnsureQuota(roomID uuid.UUID, incomingBytes int64) error {
	var room models.Room
	if err := e.DB.Select("file_count", "total_size_bytes", "max_files", "max_total_size_bytes").
		Where("id = ?", roomID).First(&room).Error; err != nil {
		return apierr.Internalf("failed to read room quota")
	}
	return Check(Usage{
		FileCount:      room.FileCount,
		TotalSizeBytes: room.TotalSizeBytes,
		MaxFiles:       room.MaxFiles,
		MaxTotalBytes:  room.MaxTotalSizeBytes,
	}, incomingBytes)
}

// Commit increments the room's file_count/total_size_bytes for a new file;
// it does not write the File row itself. Called only from Upload Complete, inside the same
// transaction as the File insert (§5 required transactions list).
func Commit(tx *gorm.DB, roomID uuid.UUID, size int64) error {
	return tx.Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{
			"file_count":       gorm.Expr("file_count + 1"),
			"total_size_bytes": gorm.Expr("total_size_bytes + ?", size),
		}).Error
}
