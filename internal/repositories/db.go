package repositories

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/models"
)

var DB *gorm.DB

func ConnectDatabase() {
	dsn := config.Envs.DB_URL
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Run migrations over the §3 data model.
	err = db.AutoMigrate(
		&models.Room{},
		&models.RoomSecret{},
		&models.File{},
		&models.PresenceRecord{},
		&models.GuestCounter{},
		&models.GuestIndexEntry{},
		&models.AccessLog{},
		&models.FileDownloadDedup{},
	)
	if err != nil {
		log.Fatal("Migration failed:", err)
	}

	if err := installStoredProcedures(db); err != nil {
		log.Fatal("Stored procedure installation failed:", err)
	}

	DB = db
	log.Println("Successfully connected to database")
}

// installStoredProcedures creates the three atomic-counter stored procedures
// §6 requires: assign_user_number, increment_remaining_files,
// decrement_remaining_files. Their Go-level fallbacks (a transaction in
// internal/presence, single atomic UPDATEs in internal/upload and
// internal/download) live alongside the callers that use them, for
// deployments where procedure creation is unavailable (§4.B/§4.E note).
func installStoredProcedures(db *gorm.DB) error {
	statements := []string{
		`CREATE OR REPLACE FUNCTION assign_user_number(p_room_id uuid, p_device text)
		 RETURNS integer AS $$
		 DECLARE
		   v_number integer;
		 BEGIN
		   SELECT guest_number INTO v_number
		     FROM guest_index_entries
		    WHERE room_id = p_room_id AND device = p_device;
		   IF FOUND THEN
		     RETURN v_number;
		   END IF;

		   INSERT INTO guest_counters (room_id, next)
		        VALUES (p_room_id, 1)
		   ON CONFLICT (room_id) DO NOTHING;

		   UPDATE guest_counters
		      SET next = next + 1
		    WHERE room_id = p_room_id
		    RETURNING next - 1 INTO v_number;

		   INSERT INTO guest_index_entries (room_id, device, guest_number, created_at)
		        VALUES (p_room_id, p_device, v_number, now())
		   ON CONFLICT (room_id, device) DO NOTHING
		    RETURNING guest_number INTO v_number;

		   IF v_number IS NULL THEN
		     SELECT guest_number INTO v_number
		       FROM guest_index_entries
		      WHERE room_id = p_room_id AND device = p_device;
		   END IF;

		   RETURN v_number;
		 END;
		 $$ LANGUAGE plpgsql;`,

		`CREATE OR REPLACE FUNCTION increment_remaining_files(p_room_id uuid)
		 RETURNS integer AS $$
		 DECLARE
		   v_remaining integer;
		 BEGIN
		   UPDATE rooms SET remaining_files = remaining_files + 1
		    WHERE id = p_room_id
		    RETURNING remaining_files INTO v_remaining;
		   RETURN v_remaining;
		 END;
		 $$ LANGUAGE plpgsql;`,

		`CREATE OR REPLACE FUNCTION decrement_remaining_files(p_room_id uuid)
		 RETURNS integer AS $$
		 DECLARE
		   v_remaining integer;
		 BEGIN
		   UPDATE rooms SET remaining_files = GREATEST(remaining_files - 1, 0)
		    WHERE id = p_room_id
		    RETURNING remaining_files INTO v_remaining;
		   RETURN v_remaining;
		 END;
		 $$ LANGUAGE plpgsql;`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
