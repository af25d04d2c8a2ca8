package accesslog

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/obscyra/rooms/internal/models"
)

func TestResolveIPPrefersXForwardedFor(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "10.0.0.1:1234"}
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	if ip := ResolveIP(r); ip != "203.0.113.7" {
		t.Errorf("ResolveIP = %q, want 203.0.113.7", ip)
	}
}

func TestResolveIPFallsBackToXRealIP(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "10.0.0.1:1234"}
	r.Header.Set("X-Real-IP", "198.51.100.9")
	if ip := ResolveIP(r); ip != "198.51.100.9" {
		t.Errorf("ResolveIP = %q, want 198.51.100.9", ip)
	}
}

func TestResolveIPFallsBackToRemoteAddr(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "192.0.2.10:5555"}
	if ip := ResolveIP(r); ip != "192.0.2.10" {
		t.Errorf("ResolveIP = %q, want 192.0.2.10", ip)
	}
}

func TestResolveIPNormalizesIPv4MappedIPv6(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "[::ffff:192.0.2.1]:443"}
	if ip := ResolveIP(r); ip != "192.0.2.1" {
		t.Errorf("ResolveIP = %q, want 192.0.2.1", ip)
	}
}

func TestSeenRecentlyDedupsWithinWindow(t *testing.T) {
	l := &Logger{dedup: make(map[string]time.Time)}
	roomID := uuid.New()
	if l.seenRecently(roomID, models.EventRoomAccess, "device-1") {
		t.Fatal("first call should not be deduped")
	}
	if !l.seenRecently(roomID, models.EventRoomAccess, "device-1") {
		t.Fatal("second call within the window should be deduped")
	}
}

func TestSeenRecentlyDistinctDevicesNotDeduped(t *testing.T) {
	l := &Logger{dedup: make(map[string]time.Time)}
	roomID := uuid.New()
	l.seenRecently(roomID, models.EventRoomAccess, "device-1")
	if l.seenRecently(roomID, models.EventRoomAccess, "device-2") {
		t.Fatal("distinct device should not be deduped")
	}
}
