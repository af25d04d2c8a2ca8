package invite

import (
	"testing"

	"github.com/obscyra/rooms/internal/config"
)

func testFlow() *Flow {
	return &Flow{
		Invite: config.InviteConfig{
			FrontendOrigin:    "https://rooms.example.com",
			AllowLocalOrigins: true,
		},
	}
}

func TestResolveLinkBuildsCanonicalWhenNoShareLink(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	link, err := f.resolveLink(Input{RoomID: roomID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://rooms.example.com/room/" + roomID
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestResolveLinkRejectsForeignOrigin(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	_, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://evil.example.com/room/" + roomID})
	if err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}
}

func TestResolveLinkAllowsLocalhostInNonProduction(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	link, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "http://localhost:5173/room/" + roomID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == "" {
		t.Fatal("expected link to be returned")
	}
}

func TestResolveLinkRejectsQueryString(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	_, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://rooms.example.com/room/" + roomID + "?x=1"})
	if err == nil {
		t.Fatal("expected query string to be rejected")
	}
}

func TestResolveLinkRejectsMismatchedRoomInPath(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	other := "660e8400-e29b-41d4-a716-446655440000"
	_, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://rooms.example.com/room/" + other})
	if err == nil {
		t.Fatal("expected mismatched room path to be rejected")
	}
}

func TestResolveLinkAcceptsValidFragmentKey(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	key := "abcdefghijklmnopqrstuvwxyzABCDEF12345678"
	link, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://rooms.example.com/room/" + roomID + "#key=" + key})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link == "" {
		t.Fatal("expected link to be returned")
	}
}

func TestResolveLinkRejectsShortFragmentKey(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	_, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://rooms.example.com/room/" + roomID + "#key=tooshort"})
	if err == nil {
		t.Fatal("expected short fragment key to be rejected")
	}
}

func TestResolveLinkRejectsMultipleFragmentParams(t *testing.T) {
	f := testFlow()
	roomID := "550e8400-e29b-41d4-a716-446655440000"
	key := "abcdefghijklmnopqrstuvwxyzABCDEF12345678"
	_, err := f.resolveLink(Input{RoomID: roomID, ShareLink: "https://rooms.example.com/room/" + roomID + "#key=" + key + "&extra=1"})
	if err == nil {
		t.Fatal("expected multiple fragment params to be rejected")
	}
}
