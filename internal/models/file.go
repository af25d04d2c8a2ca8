package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the §3 file lifecycle status.
type FileStatus string

const (
	FileLive      FileStatus = "live"
	FileDestroyed FileStatus = "destroyed"
)

// ScanStatus is the §4.E deferred scan outcome.
type ScanStatus string

const (
	ScanUnknown ScanStatus = "unknown"
	ScanSafe    ScanStatus = "safe"
	ScanRisky   ScanStatus = "risky"
)

// File is one uploaded object, keyed into the object store by RoomID+ID+Filename.
type File struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	RoomID            uuid.UUID  `json:"roomId" gorm:"type:uuid;index;not null"`
	Filename          string     `json:"filename" gorm:"not null"`
	BlobKey           string     `json:"-" gorm:"not null"`
	Size              int64      `json:"size" gorm:"not null"`
	ContentType       string     `json:"contentType"`
	DownloadCount     int        `json:"downloadCount" gorm:"not null;default:0"`
	FileStatus        FileStatus `json:"fileStatus" gorm:"type:text;not null;default:live"`
	BurnAfterDownload bool       `json:"burnAfterDownload" gorm:"not null;default:false"`
	ScanStatus        ScanStatus `json:"scanStatus" gorm:"type:text;not null;default:unknown"`
	ScanResult        string     `json:"scanResult"`
	Message           string     `json:"message"`
	TargetURL         string     `json:"targetUrl"`
	Description       string     `json:"description"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}
