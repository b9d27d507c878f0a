package store

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/ayusman/darpan/internal/broadcast"
)

// ErrNotFound is returned when a requested setting does not exist.
var ErrNotFound = errors.New("not found")

// Setting keys for the live stream.
const (
	KeyFramerate      = "stream.framerate"
	KeyScalePercent   = "stream.scale_percent"
	KeyQualityPercent = "stream.quality_percent"
	KeyFixOrientation = "stream.fix_orientation"
)

// Stream setting defaults, applied when a key is missing or malformed.
const (
	DefaultFramerate      = 10
	DefaultScalePercent   = 50
	DefaultQualityPercent = 80
)

// SettingsRepository provides access to the key-value settings table.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get retrieves a setting value by key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores a setting value, replacing any existing one.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

// StreamSettings reads the live stream parameters, substituting defaults
// for missing or malformed values. It implements broadcast.SettingsSource;
// the broadcaster polls it once per tick.
func (r *SettingsRepository) StreamSettings() broadcast.Settings {
	return broadcast.Settings{
		Framerate:      r.intSetting(KeyFramerate, DefaultFramerate),
		ScalePercent:   r.intSetting(KeyScalePercent, DefaultScalePercent),
		QualityPercent: r.intSetting(KeyQualityPercent, DefaultQualityPercent),
		FixOrientation: r.boolSetting(KeyFixOrientation, false),
	}
}

// SetStreamSettings writes all live stream parameters.
func (r *SettingsRepository) SetStreamSettings(settings broadcast.Settings) error {
	values := map[string]string{
		KeyFramerate:      strconv.Itoa(settings.Framerate),
		KeyScalePercent:   strconv.Itoa(settings.ScalePercent),
		KeyQualityPercent: strconv.Itoa(settings.QualityPercent),
		KeyFixOrientation: strconv.FormatBool(settings.FixOrientation),
	}

	for key, value := range values {
		if err := r.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *SettingsRepository) intSetting(key string, fallback int) int {
	raw, err := r.Get(key)
	if err != nil {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (r *SettingsRepository) boolSetting(key string, fallback bool) bool {
	raw, err := r.Get(key)
	if err != nil {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
