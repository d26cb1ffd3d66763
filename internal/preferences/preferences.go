package preferences

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trafficlens/internal/analytics"
)

// UserPreference stores per-context view settings as a JSON blob keyed by an
// opaque context string (a dashboard page, a saved report, an API consumer).
type UserPreference struct {
	ID        uint      `gorm:"primaryKey"`
	Context   string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// Manager loads and stores user preferences.
type Manager struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewManager creates a preferences manager.
func NewManager(db *gorm.DB, logger *slog.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// Get returns the saved preferences for a context, or nil when none exist.
// A corrupt stored blob is treated as absent rather than failing the query
// that asked for it.
func (m *Manager) Get(contextKey string) (*analytics.Preferences, error) {
	var record UserPreference
	result := m.db.Where("context = ?", contextKey).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load preferences for %q: %w", contextKey, result.Error)
	}

	var prefs analytics.Preferences
	if err := json.Unmarshal([]byte(record.Value), &prefs); err != nil {
		m.logger.Warn("Discarding unreadable preferences blob", slog.String("context", contextKey), slog.Any("error", err))
		return nil, nil
	}
	return &prefs, nil
}

// Set upserts the preferences for a context.
func (m *Manager) Set(contextKey string, prefs *analytics.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences for %q: %w", contextKey, err)
	}

	return sqlite.PerformWrite(m.logger, m.db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		return tx.Exec(`
            INSERT INTO user_preferences (context, value, created_at, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(context) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
        `, contextKey, string(payload), now, now).Error
	})
}
