package handlers

import (
	"net/http"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/utils"
)

type roomAccessRequest struct {
	RoomID string `json:"roomId"`
	Device string `json:"device"`
}

// POST /api/room-access
func JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if req.Device == "" {
		utils.JSONError(w, apierr.BadInputf("device is required"))
		return
	}

	if D.Auth.IsAuthorToken(req.RoomID, authorToken(r)) {
		ok(w, map[string]any{"skipped": "author"})
		return
	}

	var room models.Room
	if err := D.DB.Where("id = ?", roomID).First(&room).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("room not found"))
		return
	}

	if err := D.Capacity.AdmitOrReject(&room, req.Device); err != nil {
		utils.JSONError(w, err)
		return
	}

	guestNumber, err := D.Presence.AssignGuestNumber(roomID, req.Device)
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to assign guest number"))
		return
	}

	D.AccessLog.LogAccess(r, accesslog.Event{
		RoomID:      roomID,
		EventType:   models.EventRoomAccess,
		Device:      req.Device,
		GuestNumber: &guestNumber,
	})

	ok(w, map[string]int{"guestNumber": guestNumber})
}

// POST /api/room-access/presence
func Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req roomAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if req.Device == "" {
		utils.JSONError(w, apierr.BadInputf("device is required"))
		return
	}

	if D.Auth.IsAuthorToken(req.RoomID, authorToken(r)) {
		ok(w, nil)
		return
	}

	var room models.Room
	if err := D.DB.Where("id = ?", roomID).First(&room).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("room not found"))
		return
	}

	if err := D.Capacity.AdmitOrReject(&room, req.Device); err != nil {
		utils.JSONError(w, err)
		return
	}

	ok(w, nil)
}

// POST /api/room-access/leave
func LeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req roomAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID, okID := parseRoomID(w, req.RoomID)
	if !okID {
		return
	}
	if req.Device == "" {
		noContent(w)
		return
	}

	_ = D.Presence.MarkLeft(roomID, req.Device)
	D.AccessLog.LogAccess(r, accesslog.Event{
		RoomID:    roomID,
		EventType: models.EventLeave,
		Device:    req.Device,
	})
	noContent(w)
}

// GET /api/room-access/activity/{room}
func ActivityFeed(w http.ResponseWriter, r *http.Request) {
	roomID, okID := parseRoomID(w, r.PathValue("room"))
	if !okID {
		return
	}
	if !requireAuthorToken(w, r.PathValue("room"), authorToken(r)) {
		return
	}

	var logs []models.AccessLog
	if err := D.DB.Where("room_id = ?", roomID).Order("timestamp desc").Find(&logs).Error; err != nil {
		utils.JSONError(w, apierr.Internalf("failed to load activity feed"))
		return
	}
	ok(w, map[string][]models.AccessLog{"activities": logs})
}

// GET /api/room-capacity/{room}
func RoomCapacity(w http.ResponseWriter, r *http.Request) {
	roomID, okID := parseRoomID(w, r.PathValue("room"))
	if !okID {
		return
	}

	var room models.Room
	if err := D.DB.Where("id = ?", roomID).First(&room).Error; err != nil {
		utils.JSONError(w, apierr.NotFoundf("room not found"))
		return
	}

	if room.IsCapacityUnlimited() {
		ok(w, map[string]any{
			"current":     0,
			"max":         0,
			"isFull":      false,
			"isNearFull":  false,
			"isUnlimited": true,
		})
		return
	}

	current, err := D.Presence.CountActiveGuests(roomID, "")
	if err != nil {
		utils.JSONError(w, apierr.Internalf("failed to read room capacity"))
		return
	}

	max := int64(room.Capacity)
	ok(w, map[string]any{
		"current":     current,
		"max":         max,
		"isFull":      current >= max,
		"isNearFull":  max > 0 && current >= (max*8)/10,
		"isUnlimited": false,
	})
}

// GET /api/access-logs/{room}
func AccessLogs(w http.ResponseWriter, r *http.Request) {
	roomID, okID := parseRoomID(w, r.PathValue("room"))
	if !okID {
		return
	}
	if !requireAuthorToken(w, r.PathValue("room"), authorToken(r)) {
		return
	}

	var logs []models.AccessLog
	if err := D.DB.Where("room_id = ?", roomID).Order("timestamp desc").Find(&logs).Error; err != nil {
		utils.JSONError(w, apierr.Internalf("failed to load access logs"))
		return
	}
	ok(w, map[string][]models.AccessLog{"logs": logs})
}
