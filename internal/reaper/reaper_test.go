package reaper

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
)

type fakeStore struct {
	repositories.ObjectStore
	deleted []string
	stale   []repositories.StaleUpload
	aborted []string
}

func (f *fakeStore) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) VerifyObjectExists(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (f *fakeStore) ListStaleMultipartUploads(ctx context.Context, olderThan time.Time) ([]repositories.StaleUpload, error) {
	return f.stale, nil
}

func (f *fakeStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	f.aborted = append(f.aborted, key+"/"+uploadID)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping reaper integration test")
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

func TestSweepExpiredRoomsDeletesBlobsAndRoom(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	rp := &Reaper{DB: db, Store: store, StaleUploadAge: 24 * time.Hour}

	roomID := uuid.New()
	room := models.Room{ID: roomID, Name: "expired", AuthorName: "a", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	files := []models.File{
		{ID: uuid.New(), RoomID: roomID, Filename: "b1.txt", BlobKey: "key-1", Size: 10},
		{ID: uuid.New(), RoomID: roomID, Filename: "b2.txt", BlobKey: "key-2", Size: 20},
	}
	for _, f := range files {
		if err := db.Create(&f).Error; err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}
	}

	if err := rp.sweepExpiredRooms(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 blobs deleted, got %v", store.deleted)
	}
	deletedSet := map[string]bool{store.deleted[0]: true, store.deleted[1]: true}
	if !deletedSet["key-1"] || !deletedSet["key-2"] {
		t.Errorf("expected blobs key-1 and key-2 deleted, got %v", store.deleted)
	}
	var count int64
	db.Model(&models.Room{}).Where("id = ?", roomID).Count(&count)
	if count != 0 {
		t.Error("expected expired room row to be deleted")
	}
}

func TestSweepExpiredRoomsSkipsPermanentRooms(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{}
	rp := &Reaper{DB: db, Store: store, StaleUploadAge: 24 * time.Hour}

	roomID := uuid.New()
	room := models.Room{ID: roomID, Name: "permanent", AuthorName: "a", ExpiresAt: time.Now().Add(-time.Hour), IsPermanent: true}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}

	if err := rp.sweepExpiredRooms(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	var count int64
	db.Model(&models.Room{}).Where("id = ?", roomID).Count(&count)
	if count != 1 {
		t.Error("expected permanent room to survive the sweep")
	}
}

func TestRunAbortsStaleMultipartUploads(t *testing.T) {
	db := openTestDB(t)
	store := &fakeStore{
		stale: []repositories.StaleUpload{
			{Key: "room-1/orphan-1", UploadID: "upload-1"},
			{Key: "room-1/orphan-2", UploadID: "upload-2"},
		},
	}
	rp := &Reaper{DB: db, Store: store, StaleUploadAge: 24 * time.Hour}

	rp.Run(context.Background())

	if len(store.aborted) != 2 {
		t.Fatalf("expected 2 stale uploads aborted, got %v", store.aborted)
	}
	abortedSet := map[string]bool{store.aborted[0]: true, store.aborted[1]: true}
	if !abortedSet["room-1/orphan-1/upload-1"] || !abortedSet["room-1/orphan-2/upload-2"] {
		t.Errorf("expected both stale uploads aborted by key/uploadID, got %v", store.aborted)
	}
}
