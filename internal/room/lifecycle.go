// Package room implements §4.I: the room lifecycle state machine
// (active → terminating → destroyed), the destruction countdown, and
// author-initiated delete.
package room

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
)

// Scheduler is the §9 externalization-strategy interface for the
// destruction countdown: single-node default is a wall-clock timer, a
// multi-node deployment can inject a shared/coordinated implementation.
type Scheduler interface {
	After(d time.Duration, f func())
}

// timerScheduler is the default single-node Scheduler, backed by
// time.AfterFunc, with cancellation tracked for graceful shutdown.
type timerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerScheduler() *timerScheduler {
	return &timerScheduler{timers: make(map[string]*time.Timer)}
}

func (s *timerScheduler) After(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uuid.NewString()
	s.timers[key] = time.AfterFunc(d, func() {
		f()
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
	})
}

// Stop cancels all pending destruction timers, for clean process shutdown.
func (s *timerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}

// Engine drives §4.I's state machine.
type Engine struct {
	DB                   *gorm.DB
	Store                repositories.ObjectStore
	Scheduler            Scheduler
	DestructionCountdown time.Duration
}

// OnBurnExhausted is called when remaining_files drops to 0 (§4.G → §4.I):
// it flips the room to terminating and schedules the destruction check.
func (e *Engine) OnBurnExhausted(roomID uuid.UUID) error {
	now := time.Now()
	res := e.DB.Model(&models.Room{}).
		Where("id = ? AND status = ?", roomID, models.StatusActive).
		Updates(map[string]any{
			"status":                 models.StatusTerminating,
			"termination_started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already terminating/destroyed: re-entrant, nothing to do.
		return nil
	}
	e.scheduleDestructionCheck(roomID)
	return nil
}

func (e *Engine) scheduleDestructionCheck(roomID uuid.UUID) {
	e.Scheduler.After(e.DestructionCountdown, func() {
		if err := e.checkDestruction(roomID); err != nil {
			log.Printf("room %s destruction check failed: %v", roomID, err)
		}
	})
}

// checkDestruction implements §4.I's countdown-fire logic: reload, bail if
// no longer terminating, reschedule if a download is in flight, otherwise
// destroy. This is the synchronization point §5 calls out between the
// destruction countdown and the download lock.
func (e *Engine) checkDestruction(roomID uuid.UUID) error {
	ctx := context.Background()

	var r models.Room
	if err := e.DB.Where("id = ?", roomID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if r.Status != models.StatusTerminating {
		return nil // re-entrant safe
	}

	if r.DownloadInProgress() {
		e.scheduleDestructionCheck(roomID)
		return nil
	}

	return e.destroy(ctx, &r)
}

// destroy enumerates residual files, best-effort deletes each blob, flips
// status to destroyed, then deletes the room and its dependents. This is a
// saga with no surrounding transaction (§9): a blob whose delete fails is
// logged and stays in the object store once its file row is deleted; the
// reaper does not revisit it.
func (e *Engine) destroy(ctx context.Context, r *models.Room) error {
	var files []models.File
	if err := e.DB.Where("room_id = ?", r.ID).Find(&files).Error; err != nil {
		return err
	}
	for _, f := range files {
		if err := e.Store.DeleteObject(ctx, f.BlobKey); err != nil {
			log.Printf("room %s: failed to delete blob %s during destruction: %v", r.ID, f.BlobKey, err)
		}
	}

	if err := e.DB.Model(&models.Room{}).
		Where("id = ?", r.ID).
		Update("status", models.StatusDestroyed).Error; err != nil {
		return err
	}

	return e.deleteRoomAndDependents(r.ID)
}

func (e *Engine) deleteRoomAndDependents(roomID uuid.UUID) error {
	return e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.PresenceRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.GuestIndexEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.GuestCounter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.FileDownloadDedup{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomSecret{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&models.Room{}).Error
	})
}

// DeleteByAuthor implements `DELETE /api/delete-room/:roomId` (§4.I):
// constant-time author-token check, best-effort blob deletes, then the
// same dependents cascade as destroy().
func (e *Engine) DeleteByAuthor(ctx context.Context, roomID uuid.UUID, token string) (filesDeleted int, err error) {
	var secret models.RoomSecret
	if err := e.DB.Where("room_id = ?", roomID).First(&secret).Error; err != nil {
		return 0, apierr.NotFoundf("room not found")
	}
	if subtle.ConstantTimeCompare([]byte(secret.AuthorToken), []byte(token)) != 1 {
		return 0, apierr.Unauthorizedf("invalid author token")
	}

	var files []models.File
	if err := e.DB.Where("room_id = ?", roomID).Find(&files).Error; err != nil {
		return 0, apierr.Internalf("failed to list room files")
	}
	for _, f := range files {
		if err := e.Store.DeleteObject(ctx, f.BlobKey); err != nil {
			log.Printf("room %s: failed to delete blob %s during author delete: %v", roomID, f.BlobKey, err)
		}
	}

	if err := e.deleteRoomAndDependents(roomID); err != nil {
		return 0, apierr.Internalf("failed to delete room")
	}
	return len(files), nil
}
