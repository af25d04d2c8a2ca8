package auth

import "testing"

func TestIsValidRoomID(t *testing.T) {
	cases := map[string]bool{
		"550e8400-e29b-41d4-a716-446655440000": true,
		"not-a-uuid":                            false,
		"":                                      false,
		"550e8400e29b41d4a716446655440000":      false,
	}
	for id, want := range cases {
		if got := IsValidRoomID(id); got != want {
			t.Errorf("IsValidRoomID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestIsValidPasswordHash(t *testing.T) {
	valid := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if !IsValidPasswordHash(valid) {
		t.Errorf("expected %q to be a valid hash", valid)
	}
	invalid := []string{"", "ABC", valid[:63], valid + "f"}
	for _, h := range invalid {
		if IsValidPasswordHash(h) {
			t.Errorf("expected %q to be invalid", h)
		}
	}
}
