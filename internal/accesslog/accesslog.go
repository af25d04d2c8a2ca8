// Package accesslog implements §4.K: access-event logging with
// geolocation/user-agent enrichment and in-process dedup.
package accesslog

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/geo"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/useragent"
)

const dedupTTL = 3 * time.Second

// Logger implements LogAccess and the narrow AccessLogger interfaces
// internal/download and internal/invite depend on.
type Logger struct {
	DB  *gorm.DB
	Geo geo.Provider

	mu    sync.Mutex
	dedup map[string]time.Time
}

func NewLogger(db *gorm.DB, provider geo.Provider) *Logger {
	return &Logger{DB: db, Geo: provider, dedup: make(map[string]time.Time)}
}

// Event carries everything LogAccess needs beyond the *http.Request.
type Event struct {
	RoomID      uuid.UUID
	EventType   models.AccessEventType
	Device      string
	Session     string
	GuestNumber *int
}

// LogAccess resolves the client IP, enriches with geo+UA, dedups within a
// 3-second window keyed (room, event, device), and inserts. An insert error
// is logged here and never returned to the caller (§4.K step 4).
func (l *Logger) LogAccess(r *http.Request, ev Event) {
	if l.seenRecently(ev.RoomID, ev.EventType, ev.Device) {
		return
	}

	ip := ResolveIP(r)
	ua := r.UserAgent()
	parsed := useragent.Parse(ua)

	var loc geo.Location
	if l.Geo != nil {
		if resolved, err := l.Geo.Lookup(r.Context(), ip); err == nil && resolved != nil {
			loc = *resolved
		}
	}

	entry := models.AccessLog{
		RoomID:      ev.RoomID,
		EventType:   ev.EventType,
		Device:      ev.Device,
		Session:     ev.Session,
		GuestNumber: ev.GuestNumber,
		IP:          ip,
		UserAgent:   ua,
		Browser:     parsed.Browser,
		OS:          parsed.OS,
		DeviceType:  parsed.DeviceType,
		Country:     loc.Country,
		City:        loc.City,
		Region:      loc.Region,
		PostalCode:  loc.PostalCode,
		Timezone:    loc.Timezone,
	}
	if err := l.DB.Create(&entry).Error; err != nil {
		log.Printf("accesslog: failed to record %s for room %s: %v", ev.EventType, ev.RoomID, err)
	}
}

// LogFileDownload satisfies internal/download.AccessLogger.
func (l *Logger) LogFileDownload(roomID, fileID uuid.UUID, device string) error {
	if l.seenRecently(roomID, models.EventFileDownload, device) {
		return nil
	}
	l.DB.Create(&models.AccessLog{
		RoomID:    roomID,
		EventType: models.EventFileDownload,
		Device:    device,
	})
	return nil
}

// LogBulkDownload satisfies internal/download.AccessLogger, emitting
// bulk_download once per request (§4.H).
func (l *Logger) LogBulkDownload(roomID uuid.UUID, device string, fileIDs []uuid.UUID) error {
	l.DB.Create(&models.AccessLog{
		RoomID:    roomID,
		EventType: models.EventBulkDownload,
		Device:    device,
	})
	return nil
}

func dedupKey(roomID uuid.UUID, event models.AccessEventType, device string) string {
	return roomID.String() + "|" + string(event) + "|" + device
}

func (l *Logger) seenRecently(roomID uuid.UUID, event models.AccessEventType, device string) bool {
	key := dedupKey(roomID, event, device)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.dedup[key]; ok && now.Before(expiry) {
		return true
	}
	l.dedup[key] = now.Add(dedupTTL)
	return false
}

// ResolveIP implements §4.K step 1's trust-proxy chain: first element of
// X-Forwarded-For, else X-Real-IP, else RemoteAddr, with IPv6-mapped IPv4
// normalized to its dotted form.
func ResolveIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return normalizeIP(first)
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return normalizeIP(strings.TrimSpace(xrip))
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalizeIP(r.RemoteAddr)
	}
	return normalizeIP(host)
}

func normalizeIP(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return addr
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
