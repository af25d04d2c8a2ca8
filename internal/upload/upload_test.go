package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/obscyra/rooms/internal/models"
	"github.com/obscyra/rooms/internal/repositories"
)

type fakeReader struct {
	*bytes.Reader
}

func (fakeReader) Close() error { return nil }

type scanFakeStore struct {
	repositories.ObjectStore
	content []byte
}

func (s *scanFakeStore) GetObject(ctx context.Context, key string) (repositories.ObjectReader, error) {
	return fakeReader{bytes.NewReader(s.content)}, nil
}

func TestValidateFilenameRejectsSlashAndNull(t *testing.T) {
	cases := []string{"a/b.txt", "a\x00b.txt", ""}
	for _, name := range cases {
		if err := validateFilename(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	if err := validateFilename("report.pdf"); err != nil {
		t.Errorf("unexpected rejection of valid filename: %v", err)
	}
}

func TestBlobKeyConvention(t *testing.T) {
	roomID := uuid.New()
	fileID := uuid.New()
	key := BlobKey(roomID, fileID, "doc.pdf")
	want := roomID.String() + "/" + fileID.String() + "_doc.pdf"
	if key != want {
		t.Errorf("BlobKey = %q, want %q", key, want)
	}
}

func TestScanLargeFilesAutoSafeWithoutReadingContent(t *testing.T) {
	o := &Orchestrator{Store: &scanFakeStore{}}
	status, _ := o.scan(context.Background(), CompleteInput{Size: 60 * 1024 * 1024, Filename: "movie.mp4"})
	if status != models.ScanSafe {
		t.Errorf("expected large file to be auto-safe, got %v", status)
	}
}

func TestScanSmallCleanFileIsSafe(t *testing.T) {
	o := &Orchestrator{Store: &scanFakeStore{content: []byte("just some plain text notes")}}
	status, _ := o.scan(context.Background(), CompleteInput{Size: 1024, Filename: "notes.txt"})
	if status != models.ScanSafe {
		t.Errorf("expected clean small file to be safe, got %v", status)
	}
}

func TestScanSmallFileFlagsDenylistedExtension(t *testing.T) {
	o := &Orchestrator{Store: &scanFakeStore{content: []byte("anything")}}
	status, _ := o.scan(context.Background(), CompleteInput{Size: 1024, Filename: "payload.exe"})
	if status != models.ScanRisky {
		t.Errorf("expected .exe to be flagged risky, got %v", status)
	}
}

func TestScanReturnsUnknownWhenBlobUnreadable(t *testing.T) {
	o := &Orchestrator{Store: &unreadableStore{}}
	status, result := o.scan(context.Background(), CompleteInput{Size: 1024, Filename: "notes.txt"})
	if status != models.ScanUnknown {
		t.Errorf("expected unreadable blob to leave scan_status unknown, got %v", status)
	}
	if result != "Pending scan..." {
		t.Errorf("unexpected scan result message: %q", result)
	}
}

type unreadableStore struct {
	repositories.ObjectStore
}

func (unreadableStore) GetObject(ctx context.Context, key string) (repositories.ObjectReader, error) {
	return nil, context.DeadlineExceeded
}

func TestScanContentDenylistExtension(t *testing.T) {
	status, _ := ScanContent("payload.exe", []byte("anything"))
	if status != models.ScanRisky {
		t.Errorf("expected .exe to be flagged risky, got %v", status)
	}
}

func TestScanContentDoubleExtension(t *testing.T) {
	status, result := ScanContent("invoice.pdf.js", []byte("harmless"))
	if status != models.ScanRisky || result != "Double extension detected" {
		t.Errorf("expected double extension to be flagged risky, got %v (%q)", status, result)
	}
}

func TestScanContentSuspiciousPattern(t *testing.T) {
	status, _ := ScanContent("page.html", []byte("<html><script>evil()</script></html>"))
	if status != models.ScanRisky {
		t.Errorf("expected <script content to be flagged risky, got %v", status)
	}
}

func TestScanContentClean(t *testing.T) {
	status, _ := ScanContent("notes.txt", []byte("just some plain text notes"))
	if status != models.ScanSafe {
		t.Errorf("expected clean content to be safe, got %v", status)
	}
}
