// Package upload implements §4.E: the three-phase multipart upload
// orchestrator (initiate / sign-part-URLs / complete-or-abort).
package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/quota"
	"github.com/obscyra/rooms/internal/repositories"
)

const (
	minPartNumber = 1
	maxPartNumber = 10000

	// largeFileThreshold is the §4.E scan-policy cutoff.
	largeFileThreshold = 50 * 1024 * 1024
	// scanContentSample is how much of the file §4.E pattern-matches.
	scanContentSample = 10 * 1024
)

// Orchestrator wires the object store, metadata store, and quota engine.
type Orchestrator struct {
	DB           *gorm.DB
	Store        repositories.ObjectStore
	Quota        *quota.Engine
	PartURLTTL   time.Duration
}

// InitiateResult is returned from Initiate.
type InitiateResult struct {
	UploadID string
	FileKey  string
	FileID   uuid.UUID
}

// Initiate verifies room liveness, runs the quota pre-check, and reserves an
// object-store multipart handle. No database row is written on failure
// (§4.E contract).
func (o *Orchestrator) Initiate(ctx context.Context, roomID uuid.UUID, filename string, size int64, contentType string) (*InitiateResult, error) {
	if size <= 0 {
		return nil, apierr.BadInputf("file size must be greater than zero")
	}
	if err := validateFilename(filename); err != nil {
		return nil, err
	}

	var room models.Room
	if err := o.DB.Where("id = ?", roomID).First(&room).Error; err != nil {
		return nil, apierr.NotFoundf("room not found")
	}
	if room.Status == models.StatusDestroyed || time.Now().After(room.ExpiresAt) {
		return nil, apierr.Gonef("room has expired")
	}

	if err := o.Quota.EnsureQuota(roomID, size); err != nil {
		return nil, err
	}

	fileID := uuid.New()
	fileKey := BlobKey(roomID, fileID, filename)

	uploadID, err := o.Store.CreateMultipartUpload(ctx, fileKey, contentType)
	if err != nil {
		return nil, apierr.Internalf("failed to reserve upload handle")
	}

	return &InitiateResult{UploadID: uploadID, FileKey: fileKey, FileID: fileID}, nil
}

// BlobKey derives the §6 object-store key convention.
func BlobKey(roomID, fileID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s_%s", roomID, fileID, filename)
}

func validateFilename(filename string) error {
	if filename == "" {
		return apierr.BadInputf("filename is required")
	}
	if strings.Contains(filename, "/") || strings.ContainsRune(filename, 0) {
		return apierr.BadInputf("filename contains disallowed characters")
	}
	return nil
}

// SignPartURLs returns presigned PUT URLs for the requested part numbers
// (§4.E). Idempotent: callers may call again with any subset.
func (o *Orchestrator) SignPartURLs(ctx context.Context, fileKey, uploadID string, partNumbers []int32) ([]string, error) {
	if len(partNumbers) == 0 || len(partNumbers) > maxPartNumber {
		return nil, apierr.BadInputf("part count must be between 1 and 10000")
	}
	urls := make([]string, 0, len(partNumbers))
	for _, n := range partNumbers {
		if n < minPartNumber || n > maxPartNumber {
			return nil, apierr.BadInputf("part number out of range")
		}
		url, err := o.Store.PresignUploadPartURL(ctx, fileKey, uploadID, n, o.PartURLTTL)
		if err != nil {
			return nil, apierr.Internalf("failed to presign part url")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// CompleteInput is the §4.E Complete request.
type CompleteInput struct {
	RoomID      uuid.UUID
	UploadID    string
	FileKey     string
	FileID      uuid.UUID
	Filename    string
	Size        int64
	ContentType string
	Message     string
	Parts       []repositories.CompletedPart
}

// Complete finalizes the multipart upload, inserts File metadata, increments
// the room's remaining_files counter, and applies the §4.E scan policy.
func (o *Orchestrator) Complete(ctx context.Context, in CompleteInput) (*models.File, error) {
	var room models.Room
	if err := o.DB.Where("id = ?", in.RoomID).First(&room).Error; err != nil {
		return nil, apierr.NotFoundf("room not found")
	}
	if room.Status == models.StatusDestroyed || time.Now().After(room.ExpiresAt) {
		return nil, apierr.Gonef("room has expired")
	}
	if err := o.Quota.EnsureQuota(in.RoomID, in.Size); err != nil {
		return nil, err
	}

	if err := o.Store.CompleteMultipartUpload(ctx, in.FileKey, in.UploadID, in.Parts); err != nil {
		_ = o.Store.AbortMultipartUpload(ctx, in.FileKey, in.UploadID)
		return nil, apierr.Internalf("failed to complete upload")
	}

	scanStatus, scanResult := o.scan(ctx, in)

	file := models.File{
		ID:          in.FileID,
		RoomID:      in.RoomID,
		Filename:    in.Filename,
		BlobKey:     in.FileKey,
		Size:        in.Size,
		ContentType: in.ContentType,
		FileStatus:  models.FileLive,
		ScanStatus:  scanStatus,
		ScanResult:  scanResult,
		Message:     in.Message,
	}

	txErr := o.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
		if err := quota.Commit(tx, in.RoomID, in.Size); err != nil {
			return err
		}
		return incrementRemainingFiles(tx, in.RoomID)
	})
	if txErr != nil {
		return nil, apierr.Internalf("failed to persist uploaded file")
	}

	return &file, nil
}

// incrementRemainingFiles tries the atomic stored procedure first, falling
// back to a single atomic UPDATE remaining_files = remaining_files + 1
// (§4.E step 2, §9).
func incrementRemainingFiles(tx *gorm.DB, roomID uuid.UUID) error {
	if err := tx.Exec("SELECT increment_remaining_files(?)", roomID).Error; err == nil {
		return nil
	}
	return tx.Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("remaining_files", gorm.Expr("remaining_files + 1")).Error
}

// scan implements §4.E step 3. Files at or above the large-file threshold
// are auto-marked safe without inspection. Smaller files are read back from
// the object store immediately after CompleteMultipartUpload and run
// through the heuristic scan against the first scanContentSample bytes, so
// Complete always returns a final scan_status rather than leaving it
// "unknown" indefinitely.
func (o *Orchestrator) scan(ctx context.Context, in CompleteInput) (models.ScanStatus, string) {
	if in.Size >= largeFileThreshold {
		return models.ScanSafe, "Large file, skipped content scan."
	}

	reader, err := o.Store.GetObject(ctx, in.FileKey)
	if err != nil {
		return models.ScanUnknown, "Pending scan..."
	}
	defer reader.Close()

	sample := make([]byte, scanContentSample)
	n, readErr := io.ReadFull(reader, sample)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return models.ScanUnknown, "Pending scan..."
	}

	return ScanContent(in.Filename, sample[:n])
}

var denylistExtensions = []string{".exe", ".bat", ".cmd", ".scr", ".vbs", ".ps1", ".jar"}

var scanPatterns = []string{"eval(", "exec(", "<script", "powershell"}

// ScanContent runs the §4.E heuristic scan: extension denylist,
// double-extension detection, and a pattern match against the first 10KB.
// It only returns the status/result pair: Orchestrator.scan calls it inline
// during Complete, before the File row is inserted with that pair.
func ScanContent(filename string, sample []byte) (models.ScanStatus, string) {
	lower := strings.ToLower(filename)
	for _, ext := range denylistExtensions {
		if strings.HasSuffix(lower, ext) {
			return models.ScanRisky, fmt.Sprintf("Blocked extension: %s", ext)
		}
	}
	if isDoubleExtension(lower) {
		return models.ScanRisky, "Double extension detected"
	}

	limit := len(sample)
	if limit > scanContentSample {
		limit = scanContentSample
	}
	head := strings.ToLower(string(sample[:limit]))
	for _, pattern := range scanPatterns {
		if strings.Contains(head, pattern) {
			return models.ScanRisky, fmt.Sprintf("Suspicious content pattern: %s", pattern)
		}
	}
	return models.ScanSafe, "No threats detected."
}

// isDoubleExtension flags names like "invoice.pdf.exe": an executable
// extension trailing at least one other extension.
func isDoubleExtension(filename string) bool {
	parts := strings.Split(filename, ".")
	if len(parts) < 3 {
		return false
	}
	suspicious := map[string]bool{"exe": true, "scr": true, "bat": true, "cmd": true, "vbs": true, "js": true}
	return suspicious[parts[len(parts)-1]]
}

// Abort asks the object store to abort the upload. Missing handles are
// idempotent successes (§4.E).
func (o *Orchestrator) Abort(ctx context.Context, fileKey, uploadID string) error {
	if err := o.Store.AbortMultipartUpload(ctx, fileKey, uploadID); err != nil {
		return apierr.Internalf("failed to abort upload")
	}
	return nil
}
