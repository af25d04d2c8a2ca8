package room

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping lifecycle integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Room{}, &models.File{}, &models.PresenceRecord{},
		&models.GuestCounter{}, &models.GuestIndexEntry{}, &models.FileDownloadDedup{}, &models.RoomSecret{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type recordingStore struct {
	repositories.ObjectStore
	mu      sync.Mutex
	deleted []string
}

func (s *recordingStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return nil
}

// immediateScheduler runs the callback synchronously, so countdown tests
// don't need to sleep for real wall-clock time.
type immediateScheduler struct {
	mu    sync.Mutex
	fired int
}

func (s *immediateScheduler) After(d time.Duration, f func()) {
	s.mu.Lock()
	s.fired++
	s.mu.Unlock()
	f()
}

// deferredScheduler records scheduled callbacks without running them, for
// tests where running the callback would reschedule it again.
type deferredScheduler struct {
	scheduled int
}

func (s *deferredScheduler) After(d time.Duration, f func()) {
	s.scheduled++
}

func TestOnBurnExhaustedDestroysRoomWhenIdle(t *testing.T) {
	db := openTestDB(t)
	r := models.Room{Status: models.StatusActive, Capacity: 10}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	f := models.File{RoomID: r.ID, Filename: "a.txt", BlobKey: "k1"}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	store := &recordingStore{}
	sched := &immediateScheduler{}
	e := &Engine{DB: db, Store: store, Scheduler: sched, DestructionCountdown: time.Millisecond}

	if err := e.OnBurnExhausted(r.ID); err != nil {
		t.Fatalf("OnBurnExhausted failed: %v", err)
	}

	var reloaded models.Room
	err := db.Where("id = ?", r.ID).First(&reloaded).Error
	if err == nil {
		t.Fatalf("expected room to be deleted after destruction, found status %v", reloaded.Status)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "k1" {
		t.Fatalf("expected blob k1 to be deleted, got %v", store.deleted)
	}
}

func TestOnBurnExhaustedIsReentrant(t *testing.T) {
	db := openTestDB(t)
	r := models.Room{Status: models.StatusActive, Capacity: 10}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	sched := &immediateScheduler{}
	e := &Engine{DB: db, Store: &recordingStore{}, Scheduler: sched, DestructionCountdown: time.Millisecond}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.OnBurnExhausted(r.ID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Only the first caller to flip active -> terminating should have
	// scheduled a destruction check; the rest are re-entrant no-ops.
	sched.mu.Lock()
	fired := sched.fired
	sched.mu.Unlock()
	if fired != 1 {
		t.Fatalf("expected exactly one destruction check scheduled, got %d", fired)
	}
}

func TestCheckDestructionReschedulesWhileDownloadInProgress(t *testing.T) {
	db := openTestDB(t)
	r := models.Room{Status: models.StatusTerminating, Capacity: 10, DownloadLockCount: 1}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	sched := &deferredScheduler{}
	e := &Engine{DB: db, Store: &recordingStore{}, Scheduler: sched, DestructionCountdown: time.Millisecond}

	if err := e.checkDestruction(r.ID); err != nil {
		t.Fatalf("checkDestruction failed: %v", err)
	}

	var reloaded models.Room
	if err := db.Where("id = ?", r.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("expected room to survive a busy destruction check, got %v", err)
	}
	if reloaded.Status != models.StatusTerminating {
		t.Fatalf("expected room to remain terminating, got %v", reloaded.Status)
	}
	if sched.scheduled != 1 {
		t.Fatalf("expected one rescheduled destruction check, got %d", sched.scheduled)
	}
}

func TestDeleteByAuthorRejectsWrongToken(t *testing.T) {
	db := openTestDB(t)
	r := models.Room{Status: models.StatusActive, Capacity: 10}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	secret := models.RoomSecret{RoomID: r.ID, PasswordHash: "x", AuthorToken: "correct-token"}
	if err := db.Create(&secret).Error; err != nil {
		t.Fatalf("failed to seed secret: %v", err)
	}

	e := &Engine{DB: db, Store: &recordingStore{}, Scheduler: &immediateScheduler{}, DestructionCountdown: time.Millisecond}
	_, err := e.DeleteByAuthor(context.Background(), r.ID, "wrong-token")
	if err == nil {
		t.Fatal("expected rejection for wrong author token")
	}

	var reloaded models.Room
	if err := db.Where("id = ?", r.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("expected room to survive a rejected delete, got %v", err)
	}
}

func TestDeleteByAuthorDestroysWithCorrectToken(t *testing.T) {
	db := openTestDB(t)
	r := models.Room{Status: models.StatusActive, Capacity: 10}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	secret := models.RoomSecret{RoomID: r.ID, PasswordHash: "x", AuthorToken: "correct-token"}
	if err := db.Create(&secret).Error; err != nil {
		t.Fatalf("failed to seed secret: %v", err)
	}
	f := models.File{RoomID: r.ID, Filename: "a.txt", BlobKey: uuid.NewString()}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	store := &recordingStore{}
	e := &Engine{DB: db, Store: store, Scheduler: &immediateScheduler{}, DestructionCountdown: time.Millisecond}

	n, err := e.DeleteByAuthor(context.Background(), r.ID, "correct-token")
	if err != nil {
		t.Fatalf("DeleteByAuthor failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 file deleted, got %d", n)
	}

	var reloaded models.Room
	if err := db.Where("id = ?", r.ID).First(&reloaded).Error; err == nil {
		t.Fatal("expected room to be gone after author delete")
	}
}
