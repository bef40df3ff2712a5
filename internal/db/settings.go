package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Setting keys remembered across runs: the last folder the user sorted
// and the thresholds they settled on.
const (
	SettingLastRoot        = "last_root"
	SettingRecurse         = "recurse"
	SettingTimeDeltaMaxMs  = "time_delta_max_ms"
	SettingHashDistanceMax = "hash_distance_max"
)

// LoadSettings returns all persisted key/value settings.
func LoadSettings(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SaveSetting upserts one key/value pair.
func SaveSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}
