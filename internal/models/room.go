package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomMode is the §3 room-level download policy.
type RoomMode string

const (
	ModeNormal RoomMode = "normal"
	ModeBurn   RoomMode = "burn"
)

// RoomStatus is the §4.I lifecycle state.
type RoomStatus string

const (
	StatusActive      RoomStatus = "active"
	StatusTerminating RoomStatus = "terminating"
	StatusDestroyed   RoomStatus = "destroyed"
)

// UnlimitedCapacityFloor is the §4.C "capacity >= 999 is unlimited" threshold.
const UnlimitedCapacityFloor = 999

// Room is the bounded, time-limited container described in §3.
type Room struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name                  string     `json:"name" gorm:"not null"`
	AuthorName            string     `json:"authorName" gorm:"not null"`
	Mode                  RoomMode   `json:"mode" gorm:"type:text;not null;default:normal"`
	Status                RoomStatus `json:"status" gorm:"type:text;not null;default:active;index"`
	ExpiresAt             time.Time  `json:"expiresAt" gorm:"not null;index"`
	IsPermanent           bool       `json:"isPermanent" gorm:"not null;default:false"`
	Capacity              int        `json:"capacity" gorm:"not null;default:10"`
	RemainingFiles        int        `json:"remainingFiles" gorm:"not null;default:0"`
	DownloadLockCount     int        `json:"-" gorm:"not null;default:0"`
	LastDownloadActivity  *time.Time `json:"lastDownloadActivity"`
	TerminationStartedAt  *time.Time `json:"terminationStartedAt"`
	MaxFiles              int        `json:"maxFiles" gorm:"not null;default:100"`
	MaxTotalSizeBytes     int64      `json:"maxTotalSizeBytes" gorm:"not null;default:4294967296"`
	FileCount             int        `json:"fileCount" gorm:"not null;default:0"`
	TotalSizeBytes        int64      `json:"totalSizeBytes" gorm:"not null;default:0"`
	CreatedAt             time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`

	Files    []File           `json:"files,omitempty" gorm:"foreignKey:RoomID"`
	Presence []PresenceRecord `json:"-" gorm:"foreignKey:RoomID"`
}

// DownloadInProgress derives the §3 boolean lock from the refcount (§9 open
// question 2: implemented as a refcount, exposed as a boolean for API shape).
func (r *Room) DownloadInProgress() bool {
	return r.DownloadLockCount > 0
}

// IsCapacityUnlimited implements the §4.C / §8 boundary rule.
func (r *Room) IsCapacityUnlimited() bool {
	return r.Capacity >= UnlimitedCapacityFloor
}

// RoomSecret stores the password hash and author token, separate from Room
// per §3 ("Room Secret. Stored separately from Room").
type RoomSecret struct {
	RoomID         uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	PasswordHash   string    `json:"-" gorm:"not null"` // sha256 hex, 64 lower-hex chars
	AuthorToken    string    `json:"-" gorm:"not null;uniqueIndex"`
	CreatedAt      time.Time `json:"-" gorm:"autoCreateTime"`
}
