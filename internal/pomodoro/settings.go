package pomodoro

import "github.com/eralp/pomotron/internal/storage"

// SettingsKey is the storage key owned by the settings UI. The controller
// only ever reads a snapshot.
const SettingsKey = "settings"

// Settings is the user-facing configuration snapshot the core consumes.
type Settings struct {
	FocusMinutes            int  `json:"focus_minutes"`
	ShortBreakMinutes       int  `json:"short_break_minutes"`
	LongBreakMinutes        int  `json:"long_break_minutes"`
	SessionsBeforeLongBreak int  `json:"sessions_before_long_break"`
	AutoStartBreaks         bool `json:"auto_start_breaks"`
	AutoStartPomodoros      bool `json:"auto_start_pomodoros"`
	NotificationsEnabled    bool `json:"notifications_enabled"`
	SoundEnabled            bool `json:"sound_enabled"`
	DailyGoalMinutes        int  `json:"daily_goal_minutes"`
	WeeklyGoalMinutes       int  `json:"weekly_goal_minutes"`
}

// DefaultSettings mirrors the classic pomodoro defaults.
func DefaultSettings() Settings {
	return Settings{
		FocusMinutes:            25,
		ShortBreakMinutes:       5,
		LongBreakMinutes:        15,
		SessionsBeforeLongBreak: 4,
		NotificationsEnabled:    true,
		SoundEnabled:            true,
		DailyGoalMinutes:        120,
		WeeklyGoalMinutes:       600,
	}
}

// LoadSettings reads the stored settings, falling back to defaults field by
// whole snapshot when nothing usable is stored.
func LoadSettings(store storage.Store) Settings {
	s := DefaultSettings()
	if store != nil {
		var stored Settings
		if store.Get(SettingsKey, &stored) && stored.FocusMinutes > 0 {
			s = stored
		}
	}
	return s
}

// SaveSettings persists the snapshot. It reports the storage result; callers
// keep their in-memory copy regardless.
func SaveSettings(store storage.Store, s Settings) bool {
	if store == nil {
		return false
	}
	return store.Set(SettingsKey, s)
}
