// Package reaper implements §4.L: the periodic sweep for expired
// non-permanent rooms and orphaned multipart uploads.
package reaper

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
)

// Reaper is invoked once per tick by runReaperLoop in cmd/server, a ticker
// loop that calls Run synchronously, so runs never overlap. It has no
// reentrancy protection of its own.
type Reaper struct {
	DB                    *gorm.DB
	Store                 repositories.ObjectStore
	StaleUploadAge        time.Duration
	BlobDeleteConcurrency int
}

// Run executes one sweep: stale multipart upload abort, then expired room
// sweep, sequentially (§4.L). Each failure is logged and skipped.
func (rp *Reaper) Run(ctx context.Context) {
	if err := rp.abortStaleUploads(ctx); err != nil {
		log.Printf("reaper: stale upload sweep failed: %v", err)
	}
	if err := rp.sweepExpiredRooms(ctx); err != nil {
		log.Printf("reaper: expired room sweep failed: %v", err)
	}
}

func (rp *Reaper) abortStaleUploads(ctx context.Context) error {
	cutoff := time.Now().Add(-rp.StaleUploadAge)
	stale, err := rp.Store.ListStaleMultipartUploads(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, u := range stale {
		if err := rp.Store.AbortMultipartUpload(ctx, u.Key, u.UploadID); err != nil {
			log.Printf("reaper: failed to abort stale upload %s/%s: %v", u.Key, u.UploadID, err)
		}
	}
	return nil
}

func (rp *Reaper) sweepExpiredRooms(ctx context.Context) error {
	var rooms []models.Room
	if err := rp.DB.Where("expires_at < ? AND is_permanent = ? AND status <> ?",
		time.Now(), false, models.StatusDestroyed).Find(&rooms).Error; err != nil {
		return err
	}

	concurrency := rp.BlobDeleteConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	for _, r := range rooms {
		if err := rp.destroyExpiredRoom(ctx, r, concurrency); err != nil {
			log.Printf("reaper: failed to destroy expired room %s: %v", r.ID, err)
		}
	}
	return nil
}

// destroyExpiredRoom deletes each blob with bounded concurrency, then the
// room row and its dependents.
func (rp *Reaper) destroyExpiredRoom(ctx context.Context, r models.Room, concurrency int) error {
	var files []models.File
	if err := rp.DB.Where("room_id = ?", r.ID).Find(&files).Error; err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			exists, err := rp.Store.VerifyObjectExists(gctx, f.BlobKey)
			if err != nil {
				log.Printf("reaper: failed to verify blob %s for expired room %s: %v", f.BlobKey, r.ID, err)
			}
			if err == nil && !exists {
				// Already gone (e.g. a previous sweep partially completed);
				// skip the redundant delete call.
				return nil
			}
			if err := rp.Store.DeleteObject(gctx, f.BlobKey); err != nil {
				log.Printf("reaper: failed to delete blob %s for expired room %s: %v", f.BlobKey, r.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return rp.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.PresenceRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.GuestIndexEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.GuestCounter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.FileDownloadDedup{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", r.ID).Delete(&models.RoomSecret{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", r.ID).Delete(&models.Room{}).Error
	})
}
