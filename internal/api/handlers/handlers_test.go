package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/geo"
	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/presence"
)

// openTestDB and setDeps wire a minimal Deps against a real database, the
// same pattern the component packages use for their own integration tests:
// the handler surface is thin glue over those packages, not worth faking.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping handler integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Room{}, &models.File{}, &models.PresenceRecord{},
		&models.GuestCounter{}, &models.GuestIndexEntry{}, &models.FileDownloadDedup{},
		&models.RoomSecret{}, &models.AccessLog{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setDeps(t *testing.T, db *gorm.DB) {
	t.Helper()
	cfg := config.Config{}
	cfg.Room.DefaultCapacity = 999
	cfg.Room.DefaultMaxFiles = 100
	cfg.Room.DefaultMaxTotalBytes = 4 * 1024 * 1024 * 1024

	presenceStore := &presence.Store{DB: db, ActiveWindow: 120 * time.Second}
	Init(&Deps{
		DB:        db,
		Auth:      &auth.Store{DB: db},
		Presence:  presenceStore,
		Capacity:  &presence.Capacity{Presence: presenceStore},
		AccessLog: accesslog.NewLogger(db, geo.NoopProvider{}),
		Cfg:       cfg,
	})
}

func TestHealthReportsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreateRoomDefaultsToUnlimitedCapacity(t *testing.T) {
	db := openTestDB(t)
	setDeps(t, db)

	body := strings.NewReader(`{"name":"Room A","authorName":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", body)
	rec := httptest.NewRecorder()
	CreateRoom(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	var room models.Room
	if err := db.Where("id = ?", payload.Data.ID).First(&room).Error; err != nil {
		t.Fatalf("failed to reload created room: %v", err)
	}
	if !room.IsCapacityUnlimited() {
		t.Fatalf("expected default-capacity room to be unlimited, got capacity %d", room.Capacity)
	}
}

func TestJoinRoomRejectsFullRoomWithIsFullField(t *testing.T) {
	db := openTestDB(t)
	setDeps(t, db)

	room := models.Room{Name: "Small", AuthorName: "alice", Status: models.StatusActive,
		ExpiresAt: time.Now().Add(time.Hour), Capacity: 1}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	if err := db.Create(&models.PresenceRecord{
		RoomID: room.ID, Device: "device-1", Status: models.PresenceActive, LastSeenAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to seed presence: %v", err)
	}

	body := strings.NewReader(`{"roomId":"` + room.ID.String() + `","device":"device-2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/room-access", body)
	rec := httptest.NewRecorder()
	JoinRoom(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"isFull":true`) {
		t.Fatalf("expected isFull:true in body, got %s", rec.Body.String())
	}
}
