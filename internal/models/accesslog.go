package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessEventType is the §3 access-log event taxonomy.
type AccessEventType string

const (
	EventRoomAccess   AccessEventType = "room_access"
	EventLeave        AccessEventType = "leave"
	EventFileUpload   AccessEventType = "file_upload"
	EventFileDownload AccessEventType = "file_download"
	EventBulkDownload AccessEventType = "bulk_download"
	EventInviteSent   AccessEventType = "invite_sent"
)

// AccessLog is the append-only event stream described in §3.
type AccessLog struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	RoomID      uuid.UUID       `json:"roomId" gorm:"type:uuid;index;not null"`
	EventType   AccessEventType `json:"eventType" gorm:"type:text;not null;index"`
	Device      string          `json:"device"`
	Session     string          `json:"session"`
	GuestNumber *int            `json:"guestNumber"`
	Timestamp   time.Time       `json:"timestamp" gorm:"autoCreateTime;index"`
	IP          string          `json:"ip"`
	UserAgent   string          `json:"userAgent"`
	Browser     string          `json:"browser"`
	OS          string          `json:"os"`
	DeviceType  string          `json:"deviceType"`
	Country     string          `json:"country"`
	City        string          `json:"city"`
	Region      string          `json:"region"`
	PostalCode  string          `json:"postalCode"`
	Timezone    string          `json:"timezone"`
}

// FileDownloadDedup is the database-level backstop for "log 'file_download'
// once per device" (§4.G). The in-process dedup cache in internal/accesslog
// is best-effort across a single process; this unique row is the guard that
// survives a process restart or a second node (§4.K).
type FileDownloadDedup struct {
	RoomID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	FileID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	Device string    `json:"-" gorm:"primaryKey"`
}
