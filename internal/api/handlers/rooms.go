package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/utils"
)

type createRoomRequest struct {
	Name         string `json:"name"`
	AuthorName   string `json:"authorName"`
	Mode         string `json:"mode"`
	PasswordHash string `json:"passwordHash"`
	Capacity     int    `json:"capacity"`
	IsPermanent  bool   `json:"isPermanent"`
	TTLHours     int    `json:"ttlHours"`
}

type createRoomResponse struct {
	ID            uuid.UUID `json:"id"`
	AuthorToken   string    `json:"authorToken"`
	ShareFragment string    `json:"shareFragment"`
}

// POST /api/rooms
func CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.AuthorName == "" {
		utils.JSONError(w, apierr.BadInputf("name and authorName are required"))
		return
	}
	if req.PasswordHash != "" && !auth.IsValidPasswordHash(req.PasswordHash) {
		utils.JSONError(w, apierr.BadInputf("passwordHash must be a 64-char lowercase hex sha256 digest"))
		return
	}

	mode := models.ModeNormal
	if req.Mode == string(models.ModeBurn) {
		mode = models.ModeBurn
	}

	capacity := D.Cfg.Room.DefaultCapacity
	if req.Capacity > 0 {
		capacity = req.Capacity
	}

	ttl := 24 * time.Hour
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to generate author token"))
		return
	}
	fragment, err := GenerateShareFragment()
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to generate share fragment"))
		return
	}

	room := models.Room{
		Name:              req.Name,
		AuthorName:        req.AuthorName,
		Mode:              mode,
		Status:            models.StatusActive,
		ExpiresAt:         time.Now().Add(ttl),
		IsPermanent:       req.IsPermanent,
		Capacity:          capacity,
		MaxFiles:          D.Cfg.Room.DefaultMaxFiles,
		MaxTotalSizeBytes: D.Cfg.Room.DefaultMaxTotalBytes,
	}

	txErr := D.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		secret := models.RoomSecret{
			RoomID:       room.ID,
			PasswordHash: req.PasswordHash,
			AuthorToken:  token,
		}
		return tx.Create(&secret).Error
	})
	if txErr != nil {
		utils.JSONError(w, apierr.Internalf("failed to create room"))
		return
	}

	ok(w, createRoomResponse{ID: room.ID, AuthorToken: token, ShareFragment: fragment})
}

type verifyPasswordRequest struct {
	RoomID       string `json:"roomId"`
	PasswordHash string `json:"passwordHash"`
}

// POST /api/rooms/verify-password
func VerifyRoomPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if !auth.IsValidPasswordHash(req.PasswordHash) {
		utils.JSONError(w, apierr.BadInputf("passwordHash must be a 64-char lowercase hex sha256 digest"))
		return
	}

	var secret models.RoomSecret
	if err := D.DB.Where("room_id = ?", roomID).First(&secret).Error; err != nil {
		ok(w, map[string]bool{"valid": false})
		return
	}

	ok(w, map[string]bool{"valid": secret.PasswordHash == req.PasswordHash})
}

type verifyAuthorRequest struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

// POST /api/verify-author
func VerifyAuthor(w http.ResponseWriter, r *http.Request) {
	var req verifyAuthorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok(w, map[string]bool{"valid": D.Auth.IsAuthorToken(req.RoomID, req.Token)})
}

type updateFileRequest struct {
	TargetURL   *string `json:"targetUrl"`
	Description *string `json:"description"`
}

// PATCH /api/update-file/{id}
func UpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}

	var file models.File
	if err := D.DB.Where("id = ?", fileID).First(&file).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("file not found"))
		return
	}

	if !requireAuthorToken(w, file.RoomID.String(), authorToken(r)) {
		return
	}

	var req updateFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updates := map[string]any{}
	if req.TargetURL != nil {
		if *req.TargetURL != "" {
			u, err := url.Parse(*req.TargetURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				utils.JSONError(w, apierr.BadInputf("targetUrl must be an http(s) URL"))
				return
			}
		}
		updates["target_url"] = *req.TargetURL
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := D.DB.Model(&file).Updates(updates).Error; err != nil {
			utils.JSONError(w, apierr.Internalf("failed to update file"))
			return
		}
	}
	D.DB.Where("id = ?", fileID).First(&file)
	ok(w, map[string]*models.File{"file": &file})
}

// DELETE /api/delete-file/{id}
func DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.JSONError(w, apierr.BadInputf("invalid file id"))
		return
	}

	var file models.File
	if err := D.DB.Where("id = ?", fileID).First(&file).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("file not found"))
		return
	}

	if !requireAuthorToken(w, file.RoomID.String(), authorToken(r)) {
		return
	}

	if err := D.Store.DeleteObject(r.Context(), file.BlobKey); err != nil {
		// best effort; on failure the blob stays in the object store, since
		// the file row is deleted below and the reaper never revisits it.
		_ = err
	}
	if err := D.DB.Where("id = ?", fileID).Delete(&models.File{}).Error; err != nil {
		utils.JSONError(w, apierr.Internalf("failed to delete file"))
		return
	}

	ok(w, nil)
}

// DELETE /api/delete-room/{id}
func DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID, okID := parseRoomID(w, r.PathValue("id"))
	if !okID {
		return
	}

	filesDeleted, err := D.Lifecycle.DeleteByAuthor(r.Context(), roomID, authorToken(r))
	if err != nil {
		utils.JSONError(w, err)
		return
	}
	ok(w, map[string]int{"filesDeleted": filesDeleted})
}
