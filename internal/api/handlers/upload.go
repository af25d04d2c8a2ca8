package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
	"github.com/obscyra/rooms/internal/upload"
	"github.com/obscyra/rooms/internal/utils"
)

type presignedUploadRequest struct {
	RoomID      string `json:"roomId"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// POST /api/presigned-upload — single-PUT path for small files, bypassing
// the multipart lifecycle entirely.
func PresignedUpload(w http.ResponseWriter, r *http.Request) {
	var req presignedUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if !requireAuthorToken(w, req.RoomID, authorToken(r)) {
		return
	}
	if req.Size <= 0 {
		utils.JSONError(w, apierr.BadInputf("file size must be greater than zero"))
		return
	}

	if err := D.Quota.EnsureQuota(roomID, req.Size); err != nil {
		utils.JSONError(w, err)
		return
	}

	fileID := uuid.New()
	fileKey := upload.BlobKey(roomID, fileID, req.Filename)

	url, err := D.Store.PresignPutURL(r.Context(), fileKey, D.Cfg.Room.UploadPartURLTTL)
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to presign upload"))
		return
	}

	ok(w, map[string]any{"uploadUrl": url, "fileId": fileID, "fileKey": fileKey})
}

type initiateMultipartRequest struct {
	RoomID      string `json:"roomId"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// POST /api/multipart-upload/initiate
func InitiateMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req initiateMultipartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if !requireAuthorToken(w, req.RoomID, authorToken(r)) {
		return
	}

	res, err := D.Upload.Initiate(r.Context(), roomID, req.Filename, req.Size, req.ContentType)
	if err != nil {
		utils.JSONError(w, err)
		return
	}

	ok(w, map[string]any{"uploadId": res.UploadID, "fileKey": res.FileKey, "fileId": res.FileID})
}

type getPartURLsRequest struct {
	RoomID      string  `json:"roomId"`
	UploadID    string  `json:"uploadId"`
	FileKey     string  `json:"fileKey"`
	PartNumbers []int32 `json:"partNumbers"`
}

// POST /api/multipart-upload/get-part-urls
func GetPartUploadURLs(w http.ResponseWriter, r *http.Request) {
	var req getPartURLsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireAuthorToken(w, req.RoomID, authorToken(r)) {
		return
	}

	urls, err := D.Upload.SignPartURLs(r.Context(), req.FileKey, req.UploadID, req.PartNumbers)
	if err != nil {
		utils.JSONError(w, err)
		return
	}

	ok(w, map[string][]string{"presignedUrls": urls})
}

type completedPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeMultipartRequest struct {
	RoomID      string          `json:"roomId"`
	UploadID    string          `json:"uploadId"`
	FileKey     string          `json:"fileKey"`
	FileID      string          `json:"fileId"`
	Filename    string          `json:"filename"`
	Size        int64           `json:"size"`
	ContentType string          `json:"contentType"`
	Message     string          `json:"message"`
	Parts       []completedPart `json:"parts"`
}

// POST /api/multipart-upload/complete
func CompleteMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req completeMultipartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if !requireAuthorToken(w, req.RoomID, authorToken(r)) {
		return
	}
	fileID, err := uuid.Parse(req.FileID)
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}

	parts := make([]repositories.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, repositories.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	file, err := D.Upload.Complete(r.Context(), upload.CompleteInput{
		RoomID:      roomID,
		UploadID:    req.UploadID,
		FileKey:     req.FileKey,
		FileID:      fileID,
		Filename:    req.Filename,
		Size:        req.Size,
		ContentType: req.ContentType,
		Message:     req.Message,
		Parts:       parts,
	})
	if err != nil {
		utils.JSONError(w, err)
		return
	}

	w.Header().Set("ETag", req.FileKey)
	ok(w, map[string]*models.File{"file": file})
}

type abortMultipartRequest struct {
	RoomID   string `json:"roomId"`
	UploadID string `json:"uploadId"`
	FileKey  string `json:"fileKey"`
}

// POST /api/multipart-upload/abort
func AbortMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req abortMultipartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !requireAuthorToken(w, req.RoomID, authorToken(r)) {
		return
	}
	if err := D.Upload.Abort(r.Context(), req.FileKey, req.UploadID); err != nil {
		utils.JSONError(w, err)
		return
	}
	ok(w, nil)
}
