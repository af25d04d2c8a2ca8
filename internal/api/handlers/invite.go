package handlers

import (
	"net/http"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/invite"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/utils"
)

type inviteRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	RoomID         string `json:"roomId"`
	ShareLink      string `json:"shareLink"`
	RoomName       string `json:"roomName"`
}

// POST /api/invite
func SendInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := D.Invite.Send(r.Context(), invite.Input{
		RecipientEmail: req.RecipientEmail,
		RoomID:         req.RoomID,
		ShareLink:      req.ShareLink,
		RoomName:       req.RoomName,
		IP:             clientIP(r),
	})
	if err != nil {
		utils.JSONError(w, err)
		return
	}

	if roomID, parseErr := invite.ParseRoomID(req.RoomID); parseErr == nil {
		D.AccessLog.LogAccess(r, accesslog.Event{
			RoomID:    roomID,
			EventType: models.EventInviteSent,
		})
	}

	ok(w, nil)
}
