package handlers

import (
	"net/http"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/utils"
)

type liveSnapshot struct {
	ActiveRooms      int64 `json:"activeRooms"`
	TerminatingRooms int64 `json:"terminatingRooms"`
	ActiveDevices    int64 `json:"activeDevices"`
	FilesLive        int64 `json:"filesLive"`
}

// GET /api/analytics/live — admin-gated (§6).
func AnalyticsLive(w http.ResponseWriter, r *http.Request) {
	var snap liveSnapshot
	D.DB.Model(&models.Room{}).Where("status = ?", models.StatusActive).Count(&snap.ActiveRooms)
	D.DB.Model(&models.Room{}).Where("status = ?", models.StatusTerminating).Count(&snap.TerminatingRooms)
	D.DB.Model(&models.PresenceRecord{}).Where("status = ?", models.PresenceActive).Count(&snap.ActiveDevices)
	D.DB.Model(&models.File{}).Where("file_status = ?", models.FileLive).Count(&snap.FilesLive)
	ok(w, snap)
}

// GET /api/analytics-admin/rooms — admin-gated room roster for support.
func AnalyticsRooms(w http.ResponseWriter, r *http.Request) {
	var rooms []models.Room
	if err := D.DB.Order("created_at desc").Limit(200).Find(&rooms).Error; err != nil {
		utils.JSONError(w, apierr.Internalf("failed to list rooms"))
		return
	}
	ok(w, map[string][]models.Room{"rooms": rooms})
}
