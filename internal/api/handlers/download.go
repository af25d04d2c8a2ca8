package handlers

import (
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/utils"
)

// GET /api/download?roomId=&fileKey= (device from the X-Device-Id header)
func MintDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID, okID := parseRoomID(w, q.Get("roomId"))
	if !okID {
		return
	}
	fileID, err := uuid.Parse(q.Get("fileKey"))
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}
	if _, okAuth := authorizeAuthorOrGuest(w, q.Get("roomId"), authorToken(r), deviceID(r)); !okAuth {
		return
	}

	url, file, err := D.Download.Mint(r.Context(), roomID, fileID)
	if err != nil {
		utils.JSONError(w, err)
		return
	}

	var room models.Room
	D.DB.Where("id = ?", roomID).First(&room)

	ok(w, map[string]any{
		"signedUrl":  url,
		"filename":   file.Filename,
		"burnMode":   room.Mode == models.ModeBurn || file.BurnAfterDownload,
		"roomStatus": room.Status,
	})
}

type downloadLockRequest struct {
	RoomID string `json:"roomId"`
	FileID string `json:"fileId"`
}

// POST /api/download/start
func DownloadStart(w http.ResponseWriter, r *http.Request) {
	var req downloadLockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if _, okAuth := authorizeAuthorOrGuest(w, req.RoomID, authorToken(r), deviceID(r)); !okAuth {
		return
	}

	if err := D.Download.Start(roomID); err != nil {
		utils.JSONError(w, apierr.Internalf("failed to lock room for download"))
		return
	}
	ok(w, nil)
}

type downloadEndRequest struct {
	RoomID  string `json:"roomId"`
	FileID  string `json:"fileId"`
	Success bool   `json:"success"`
}

// POST /api/download/end
func DownloadEnd(w http.ResponseWriter, r *http.Request) {
	var req downloadEndRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	fileID, err := uuid.Parse(req.FileID)
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}
	if _, okAuth := authorizeAuthorOrGuest(w, req.RoomID, authorToken(r), deviceID(r)); !okAuth {
		return
	}

	if err := D.Download.End(r.Context(), roomID, fileID, deviceID(r), req.Success); err != nil {
		utils.JSONError(w, apierr.Internalf("failed to finalize download"))
		return
	}
	ok(w, nil)
}

type bulkMarkRequest struct {
	RoomID  string   `json:"roomId"`
	FileIDs []string `json:"fileIds"`
}

// POST /api/download/bulk-mark
func BulkMark(w http.ResponseWriter, r *http.Request) {
	var req bulkMarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if _, okAuth := authorizeAuthorOrGuest(w, req.RoomID, authorToken(r), deviceID(r)); !okAuth {
		return
	}

	fileIDs := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.JSONError(w, apierr.BadInputf("invalid file id in list"))
			return
		}
		fileIDs = append(fileIDs, id)
	}

	marked, err := D.Download.BulkMark(r.Context(), roomID, fileIDs, deviceID(r))
	if err != nil {
		utils.JSONError(w, err)
		return
	}
	ok(w, map[string]int{"filesMarked": marked})
}

// GET /api/preview?fileKey=&proxy=true|false
func Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fileID, err := uuid.Parse(q.Get("fileKey"))
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}

	var file models.File
	if err := D.DB.Where("id = ?", fileID).First(&file).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("file not found"))
		return
	}
	if file.FileStatus != models.FileLive {
		utils.JSONError(w, apierr.Gonef("file is no longer available"))
		return
	}

	if q.Get("proxy") == "true" {
		reader, err := D.Store.GetObject(r.Context(), file.BlobKey)
		if err != nil {
			utils.JSONError(w, apierr.Internalf("failed to read file"))
			return
		}
		defer reader.Close()
		w.Header().Set("Content-Type", file.ContentType)
		_, _ = io.Copy(w, reader)
		return
	}

	url, err := D.Store.PresignGetURL(r.Context(), file.BlobKey, D.Cfg.Room.PreviewURLTTL)
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to presign preview"))
		return
	}
	ok(w, map[string]string{"signedUrl": url})
}

// GET /api/bulk-download?roomId=
func BulkDownload(w http.ResponseWriter, r *http.Request) {
	roomID, okID := parseRoomID(w, r.URL.Query().Get("roomId"))
	if !okID {
		return
	}

	var room models.Room
	if err := D.DB.Where("id = ?", roomID).First(&room).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("room not found"))
		return
	}

	var files []models.File
	if err := D.DB.Where("room_id = ? AND file_status = ?", roomID, models.FileLive).Find(&files).Error; err != nil {
		utils.JSONError(w, apierr.Internalf("failed to list room files"))
		return
	}
	if len(files) == 0 {
		utils.JSONError(w, apierr.NotFoundf("room has no files to archive"))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+slugify(room.Name)+`.zip"`)

	D.AccessLog.LogAccess(r, accesslog.Event{RoomID: roomID, EventType: models.EventBulkDownload})

	_ = D.Archiver.Stream(r.Context(), w, files)
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases name and collapses runs of non-alphanumeric
// characters into a single hyphen, for the bulk-archive filename.
func slugify(name string) string {
	s := slugNonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "room"
	}
	return s
}
