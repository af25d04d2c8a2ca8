// Package presence implements §4.B Presence Store and §4.C Capacity Gate.
package presence

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/apierr"
	"github.com/obscyra/rooms/internal/models"
)

// Store exposes Upsert/MarkLeft/CountActiveGuests/AssignGuestNumber (§4.B).
type Store struct {
	DB           *gorm.DB
	ActiveWindow time.Duration
}

// Upsert sets last_seen_at = now, status = active for (room, device). This is
// the non-transactional half of admission; Capacity.Admit calls it inside the
// same decision (§4.C step 3).
func (s *Store) Upsert(roomID uuid.UUID, device string, isAuthor bool) error {
	now := time.Now()
	record := models.PresenceRecord{
		RoomID:     roomID,
		Device:     device,
		IsAuthor:   isAuthor,
		Status:     models.PresenceActive,
		LastSeenAt: now,
	}
	return s.DB.Save(&record).Error
}

// MarkLeft sets status=left only if currently active, for sendBeacon-style
// leave calls (§4.B).
func (s *Store) MarkLeft(roomID uuid.UUID, device string) error {
	return s.DB.Model(&models.PresenceRecord{}).
		Where("room_id = ? AND device = ? AND status = ?", roomID, device, models.PresenceActive).
		Update("status", models.PresenceLeft).Error
}

// CountActiveGuests counts presence rows with status=active and last_seen_at
// within the active window, optionally excluding one device (§4.B/§4.C). The
// count intentionally ignores is_author rows, and historical author rows
// that slipped into presence are filtered the same way (§3 invariant note).
func (s *Store) CountActiveGuests(roomID uuid.UUID, excludeDevice string) (int64, error) {
	cutoff := time.Now().Add(-s.ActiveWindow)
	q := s.DB.Model(&models.PresenceRecord{}).
		Where("room_id = ? AND status = ? AND is_author = ? AND last_seen_at >= ?",
			roomID, models.PresenceActive, false, cutoff)
	if excludeDevice != "" {
		q = q.Where("device <> ?", excludeDevice)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// AssignGuestNumber is the idempotent, race-free §4.B guest-number
// assignment. It first tries the atomic assign_user_number stored
// procedure (§6); if the procedure is unavailable it falls back to a
// two-reads-plus-atomic-increment transaction (§4.B implementation
// contract, §9 fallback note). A concurrent first-join retries on
// unique-constraint conflict and reads back the winner's number, so both
// callers observe the same value (§8 S1/S5).
func (s *Store) AssignGuestNumber(roomID uuid.UUID, device string) (int, error) {
	if n, err := s.assignViaStoredProcedure(roomID, device); err == nil {
		return n, nil
	}
	return s.assignViaTransaction(roomID, device)
}

func (s *Store) assignViaStoredProcedure(roomID uuid.UUID, device string) (int, error) {
	var n int
	row := s.DB.Raw("SELECT assign_user_number(?, ?)", roomID, device).Row()
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) assignViaTransaction(roomID uuid.UUID, device string) (int, error) {
	var existing models.GuestIndexEntry
	err := s.DB.Where("room_id = ? AND device = ?", roomID, device).First(&existing).Error
	if err == nil {
		return existing.GuestNumber, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	var assigned int
	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		var counter models.GuestCounter
		if err := tx.Where("room_id = ?", roomID).First(&counter).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			counter = models.GuestCounter{RoomID: roomID, Next: 1}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		}

		n := counter.Next
		entry := models.GuestIndexEntry{RoomID: roomID, Device: device, GuestNumber: n}
		if err := tx.Create(&entry).Error; err != nil {
			// Unique-constraint conflict: someone else won the race for
			// this (room, device); read back their number (tie-break).
			var winner models.GuestIndexEntry
			if readErr := tx.Where("room_id = ? AND device = ?", roomID, device).First(&winner).Error; readErr != nil {
				return err
			}
			assigned = winner.GuestNumber
			return nil
		}

		if err := tx.Model(&models.GuestCounter{}).
			Where("room_id = ?", roomID).
			Update("next", gorm.Expr("next + 1")).Error; err != nil {
			return err
		}
		assigned = n
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return assigned, nil
}

// Capacity enforces §4.C admission.
type Capacity struct {
	Presence *Store
}

// Admit decides admit/reject for a non-author join or heartbeat and, on
// admit, upserts presence in the same call (§4.C).
func (c *Capacity) Admit(room *models.Room, device string) (bool, error) {
	if room.IsCapacityUnlimited() {
		return true, c.Presence.Upsert(room.ID, device, false)
	}

	used, err := c.Presence.CountActiveGuests(room.ID, device)
	if err != nil {
		return false, err
	}
	if used >= int64(room.Capacity) {
		return false, nil
	}
	return true, c.Presence.Upsert(room.ID, device, false)
}

// AdmitOrReject wraps Admit with the §6 error shape.
func (c *Capacity) AdmitOrReject(room *models.Room, device string) error {
	ok, err := c.Admit(room, device)
	if err != nil {
		return apierr.Internalf("presence error")
	}
	if !ok {
		return apierr.UnauthorizedWithData("room is full", map[string]any{"isFull": true})
	}
	return nil
}
