// Package auth implements §4.A Identity & Auth: author-token verification
// and guest authorization via presence.
package auth

import (
	"crypto/subtle"
	"errors"
	"regexp"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/models"
)

// Principal is the result of an Authorize call.
type Principal int

const (
	Unauthorized Principal = iota
	Author
	Guest
)

// roomIDPattern enforces the §4.A "strict UUID v1–5 shape" requirement.
var roomIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// passwordHashPattern enforces the §4.A "64 lower-hex chars" requirement.
var passwordHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsValidRoomID reports whether id has the strict UUID v1-5 shape §4.A requires.
func IsValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// IsValidPasswordHash reports whether hash is a 64-char lowercase hex digest.
func IsValidPasswordHash(hash string) bool {
	return passwordHashPattern.MatchString(hash)
}

// Store is the subset of the metadata store Authorize/IsAuthorToken need.
type Store struct {
	DB *gorm.DB
}

// IsAuthorToken does a constant-time comparison of token against the stored
// author token for room. It returns false (never an error) for malformed
// room ids, missing rows, or a mismatch — per §4.A.
func (s *Store) IsAuthorToken(roomID, token string) bool {
	if !IsValidRoomID(roomID) || token == "" {
		return false
	}
	id, err := uuid.Parse(roomID)
	if err != nil {
		return false
	}

	var secret models.RoomSecret
	if err := s.DB.Where("room_id = ?", id).First(&secret).Error; err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(secret.AuthorToken), []byte(token)) == 1
}

// Authorize resolves the principal for (room, token, device): author wins,
// otherwise succeeds iff a presence row (room, device) exists — §4.A.
func (s *Store) Authorize(roomID, token, device string) (Principal, error) {
	if !IsValidRoomID(roomID) {
		return Unauthorized, errors.New("malformed room id")
	}

	if token != "" && s.IsAuthorToken(roomID, token) {
		return Author, nil
	}

	if device == "" {
		return Unauthorized, nil
	}

	id, err := uuid.Parse(roomID)
	if err != nil {
		return Unauthorized, nil
	}

	var presence models.PresenceRecord
	err = s.DB.Where("room_id = ? AND device = ?", id, device).First(&presence).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Unauthorized, nil
		}
		return Unauthorized, err
	}

	return Guest, nil
}
