package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is the §3 presence status.
type PresenceStatus string

const (
	PresenceActive PresenceStatus = "active"
	PresenceLeft   PresenceStatus = "left"
)

// PresenceRecord is the composite (room, device) heartbeat row (§3, §4.B).
type PresenceRecord struct {
	RoomID     uuid.UUID      `json:"roomId" gorm:"type:uuid;primaryKey"`
	Device     string         `json:"device" gorm:"primaryKey"`
	IsAuthor   bool           `json:"isAuthor" gorm:"not null;default:false"`
	Status     PresenceStatus `json:"status" gorm:"type:text;not null;default:active"`
	LastSeenAt time.Time      `json:"lastSeenAt" gorm:"not null;index"`
}

// GuestCounter is the per-room monotonic counter backing guest-number
// assignment (§3 "Guest Index"). One row per room.
type GuestCounter struct {
	RoomID uuid.UUID `json:"roomId" gorm:"type:uuid;primaryKey"`
	Next   int       `json:"next" gorm:"not null;default:1"`
}

// GuestIndexEntry maps a (room, device) pair to its stable dense guest number.
type GuestIndexEntry struct {
	RoomID      uuid.UUID `json:"roomId" gorm:"type:uuid;primaryKey"`
	Device      string    `json:"device" gorm:"primaryKey"`
	GuestNumber int       `json:"guestNumber" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
