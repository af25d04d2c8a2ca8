// Package download implements §4.G (Download Coordinator) and §4.H
// (Bulk Archiver).
package download

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
	"github.com/obscyra/rooms/internal/room"
)

// AccessLogger is the minimal slice of internal/accesslog this package
// depends on, kept narrow to avoid an import cycle (accesslog does not
// need to know about download).
type AccessLogger interface {
	LogFileDownload(roomID, fileID uuid.UUID, device string) error
	LogBulkDownload(roomID uuid.UUID, device string, fileIDs []uuid.UUID) error
}

// Coordinator implements §4.G: mint / start / end / bulk-mark.
type Coordinator struct {
	DB              *gorm.DB
	Store           repositories.ObjectStore
	Lifecycle       *room.Engine
	Scheduler       room.Scheduler
	AccessLog       AccessLogger
	GetURLTTL       time.Duration
	BurnDeleteDelay time.Duration
}

// Mint returns a presigned GET URL for a live file in a non-destroyed room,
// enforcing the burn-mode busy/already-downloaded gates (§4.G).
func (c *Coordinator) Mint(ctx context.Context, roomID, fileID uuid.UUID) (string, *models.File, error) {
	var file models.File
	if err := c.DB.Where("id = ? AND room_id = ?", fileID, roomID).First(&file).Error; err != nil {
		return "", nil, apierr.NotFoundf("file not found")
	}
	if file.FileStatus != models.FileLive {
		return "", nil, apierr.Gonef("file is no longer available")
	}

	var r models.Room
	if err := c.DB.Where("id = ?", roomID).First(&r).Error; err != nil {
		return "", nil, apierr.NotFoundf("room not found")
	}
	if r.Status == models.StatusDestroyed {
		return "", nil, apierr.Gonef("room has expired")
	}

	if isBurnish(&r, &file) {
		if file.DownloadCount > 0 {
			return "", nil, apierr.Gonef("file already downloaded")
		}
		if r.DownloadInProgress() {
			return "", nil, apierr.Conflictf("a download is already in progress for this room")
		}
	}

	url, err := c.Store.PresignGetURL(ctx, file.BlobKey, c.GetURLTTL)
	if err != nil {
		return "", nil, apierr.Internalf("failed to presign download")
	}
	return url, &file, nil
}

func isBurnish(r *models.Room, f *models.File) bool {
	return r.Mode == models.ModeBurn || f.BurnAfterDownload
}

// Start increments the room's download lock refcount and stamps
// last_download_activity (§4.G step 2, §9 decision 2).
func (c *Coordinator) Start(roomID uuid.UUID) error {
	return c.DB.Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]any{
			"download_lock_count":    gorm.Expr("download_lock_count + 1"),
			"last_download_activity": time.Now(),
		}).Error
}

// End clears one unit of the download lock and, on success, increments
// download_count, logs the dedup'd file_download event, and — for burn
// rooms or one-time files — schedules blob/row destruction after a short
// delay (§4.G step 3). On failure it only clears the lock.
func (c *Coordinator) End(ctx context.Context, roomID, fileID uuid.UUID, device string, success bool) error {
	if err := c.clearLock(roomID); err != nil {
		return err
	}
	if !success {
		return nil
	}

	var file models.File
	if err := c.DB.Where("id = ? AND room_id = ?", fileID, roomID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already destroyed by a concurrent End
		}
		return err
	}

	var r models.Room
	if err := c.DB.Where("id = ?", roomID).First(&r).Error; err != nil {
		return err
	}

	burnish := isBurnish(&r, &file)
	counted := c.incrementDownloadCount(fileID, burnish)

	dedupRes := c.DB.Create(&models.FileDownloadDedup{RoomID: roomID, FileID: fileID, Device: device})
	if dedupRes.Error == nil {
		if err := c.AccessLog.LogFileDownload(roomID, fileID, device); err != nil {
			return err
		}
	}

	if burnish && counted {
		burnMode := r.Mode == models.ModeBurn
		c.Scheduler.After(c.BurnDeleteDelay, func() {
			c.destroyFile(context.Background(), roomID, file, burnMode)
		})
	}
	return nil
}

// incrementDownloadCount bumps download_count by one and reports whether
// this call performed the increment. For burn/one-time files the update
// is gated on download_count = 0, a single-row conditional update
// independent of device, so two devices racing through Mint/Start/End
// cannot both increment it (§3 Invariant 4: download_count ≤ 1 globally
// for those files). Other files increment unconditionally.
func (c *Coordinator) incrementDownloadCount(fileID uuid.UUID, burnish bool) bool {
	q := c.DB.Model(&models.File{}).Where("id = ?", fileID)
	if burnish {
		q = q.Where("download_count = 0")
	}
	res := q.Update("download_count", gorm.Expr("download_count + 1"))
	return res.Error == nil && res.RowsAffected > 0
}

func (c *Coordinator) clearLock(roomID uuid.UUID) error {
	return c.DB.Model(&models.Room{}).
		Where("id = ? AND download_lock_count > 0", roomID).
		Update("download_lock_count", gorm.Expr("download_lock_count - 1")).Error
}

// destroyFile implements the delayed half of §4.G step 3: delete the blob,
// mark the file destroyed, delete its row, and, for burn rooms, decrement
// remaining_files and hand off to the Room Lifecycle Engine on exhaustion.
func (c *Coordinator) destroyFile(ctx context.Context, roomID uuid.UUID, file models.File, burnMode bool) {
	if err := c.Store.DeleteObject(ctx, file.BlobKey); err != nil {
		// Best effort: on failure the blob stays in the object store; the
		// file row is still deleted below, so the reaper never revisits it.
	}
	c.DB.Model(&models.File{}).Where("id = ?", file.ID).Update("file_status", models.FileDestroyed)
	c.DB.Where("id = ?", file.ID).Delete(&models.File{})

	if !burnMode {
		return
	}
	decrementRemainingFiles(c.DB, roomID)

	var r models.Room
	if err := c.DB.Where("id = ?", roomID).First(&r).Error; err == nil && r.RemainingFiles <= 0 {
		_ = c.Lifecycle.OnBurnExhausted(roomID)
	}
}

// decrementRemainingFiles tries the atomic stored procedure first, falling
// back to a floored update (§9 decision 3).
func decrementRemainingFiles(db *gorm.DB, roomID uuid.UUID) {
	if err := db.Exec("SELECT decrement_remaining_files(?)", roomID).Error; err == nil {
		return
	}
	db.Model(&models.Room{}).
		Where("id = ? AND remaining_files > 0", roomID).
		Update("remaining_files", gorm.Expr("remaining_files - 1"))
}

// BulkMark is the archive-path analog of End (§4.G "Bulk mark"): for each
// file, increment download_count, and in burn rooms decrement
// remaining_files atomically, triggering the Lifecycle Engine on
// exhaustion.
func (c *Coordinator) BulkMark(ctx context.Context, roomID uuid.UUID, fileIDs []uuid.UUID, device string) (int, error) {
	var r models.Room
	if err := c.DB.Where("id = ?", roomID).First(&r).Error; err != nil {
		return 0, apierr.NotFoundf("room not found")
	}

	var files []models.File
	if err := c.DB.Where("room_id = ? AND id IN ?", roomID, fileIDs).Find(&files).Error; err != nil {
		return 0, apierr.Internalf("failed to load files for bulk mark")
	}

	for _, f := range files {
		c.incrementDownloadCount(f.ID, isBurnish(&r, &f))
		if r.Mode == models.ModeBurn {
			decrementRemainingFiles(c.DB, roomID)
		}
	}

	if r.Mode == models.ModeBurn {
		var reloaded models.Room
		if err := c.DB.Where("id = ?", roomID).First(&reloaded).Error; err == nil && reloaded.RemainingFiles <= 0 {
			_ = c.Lifecycle.OnBurnExhausted(roomID)
		}
	}

	if err := c.AccessLog.LogBulkDownload(roomID, device, fileIDs); err != nil {
		return len(files), err
	}
	return len(files), nil
}

// Archiver implements §4.H: streams a zip of multiple room files without
// buffering the whole archive in memory.
type Archiver struct {
	Store repositories.ObjectStore
}

type fetchedEntry struct {
	name   string
	reader repositories.ObjectReader
}

// Stream writes a zip archive of the given files to w, prefetching the next
// blob from the object store while the current one is being written into
// the archive. zip.Writer is not safe for concurrent writes, so only the
// fetch stage is pipelined; entries are still written in order. A failure
// fetching one member is logged here and does not abort the rest (§4.H);
// errgroup is used only to bound the prefetch goroutine's lifetime.
func (a *Archiver) Stream(ctx context.Context, w io.Writer, files []models.File) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	names := dedupeNames(files)

	g, ctx := errgroup.WithContext(ctx)
	fetched := make(chan fetchedEntry, 1)

	g.Go(func() error {
		defer close(fetched)
		for i, f := range files {
			reader, err := a.Store.GetObject(ctx, f.BlobKey)
			if err != nil {
				log.Printf("archive: failed to fetch %s: %v", f.BlobKey, err)
				continue
			}
			select {
			case fetched <- fetchedEntry{name: names[i], reader: reader}:
			case <-ctx.Done():
				reader.Close()
				return ctx.Err()
			}
		}
		return nil
	})

	for entry := range fetched {
		w, err := zw.Create(entry.name)
		if err != nil {
			entry.reader.Close()
			continue
		}
		_, copyErr := io.Copy(w, entry.reader)
		entry.reader.Close()
		_ = copyErr
	}

	return g.Wait()
}

// dedupeNames gives each file a unique archive entry name, appending " (n)"
// before the extension for repeated filenames within the same batch.
func dedupeNames(files []models.File) []string {
	seen := make(map[string]int)
	names := make([]string, len(files))
	for i, f := range files {
		count := seen[f.Filename]
		seen[f.Filename] = count + 1
		if count == 0 {
			names[i] = f.Filename
			continue
		}
		ext := path.Ext(f.Filename)
		base := f.Filename[:len(f.Filename)-len(ext)]
		names[i] = base + " (" + strconv.Itoa(count) + ")" + ext
	}
	return names
}
