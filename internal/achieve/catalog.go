// Package achieve evaluates the static achievement catalog against ledger
// aggregates and manages the unlock, claim and notification lifecycle.
package achieve

import "fmt"

// Tier is one level of an achievement type.
type Tier struct {
	Level       int     `json:"level"`
	Requirement float64 `json:"requirement"`
	Reward      string  `json:"reward"`
}

// Definition is a read-only achievement type with its ordered tiers.
type Definition struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Tiers       []Tier `json:"tiers"`
}

// Achievement type identifiers.
const (
	TypeFocusMaster    = "focusMaster"    // total focus hours
	TypeStreakChampion = "streakChampion" // current streak days
	TypeConsistency    = "consistencyKing" // completed sessions
	TypeFocusNinja     = "focusNinja"     // uninterrupted completed focus sessions
	TypeEarlyBird      = "earlyBird"      // completed focus sessions started before 10:00
)

// Catalog is the process-wide constant achievement set. Order here fixes the
// evaluation and display order.
var Catalog = []Definition{
	{
		Type:        TypeFocusMaster,
		Title:       "Focus Master",
		Description: "Accumulate total focus time",
		Icon:        "⏱",
		Tiers: []Tier{
			{Level: 1, Requirement: 5, Reward: "Bronze Badge"},
			{Level: 2, Requirement: 15, Reward: "Silver Badge"},
			{Level: 3, Requirement: 30, Reward: "Gold Badge"},
		},
	},
	{
		Type:        TypeStreakChampion,
		Title:       "Streak Champion",
		Description: "Maintain consecutive days of focus",
		Icon:        "🔥",
		Tiers: []Tier{
			{Level: 1, Requirement: 3, Reward: "Bronze Trophy"},
			{Level: 2, Requirement: 7, Reward: "Silver Trophy"},
			{Level: 3, Requirement: 14, Reward: "Gold Trophy"},
		},
	},
	{
		Type:        TypeConsistency,
		Title:       "Consistency King",
		Description: "Complete focus sessions regularly",
		Icon:        "👑",
		Tiers: []Tier{
			{Level: 1, Requirement: 10, Reward: "Daily Tracker"},
			{Level: 2, Requirement: 20, Reward: "Weekly Insights"},
			{Level: 3, Requirement: 30, Reward: "Monthly Report"},
		},
	},
	{
		Type:        TypeFocusNinja,
		Title:       "Focus Ninja",
		Description: "Complete sessions without interruptions",
		Icon:        "🥷",
		Tiers: []Tier{
			{Level: 1, Requirement: 5, Reward: "Focus Techniques"},
			{Level: 2, Requirement: 15, Reward: "Distraction Blocker"},
			{Level: 3, Requirement: 30, Reward: "Productivity Master"},
		},
	},
	{
		Type:        TypeEarlyBird,
		Title:       "Early Bird",
		Description: "Complete morning focus sessions",
		Icon:        "🌅",
		Tiers: []Tier{
			{Level: 1, Requirement: 3, Reward: "Morning Routine"},
			{Level: 2, Requirement: 7, Reward: "Productivity Planner"},
			{Level: 3, Requirement: 14, Reward: "Energy Booster"},
		},
	},
}

// UnlockID builds the stable identifier for a (type, level) pair.
func UnlockID(typeID string, level int) string {
	return fmt.Sprintf("%s_%d", typeID, level)
}

func definition(typeID string) (Definition, bool) {
	for _, d := range Catalog {
		if d.Type == typeID {
			return d, true
		}
	}
	return Definition{}, false
}

func tier(typeID string, level int) (Tier, bool) {
	d, ok := definition(typeID)
	if !ok {
		return Tier{}, false
	}
	for _, t := range d.Tiers {
		if t.Level == level {
			return t, true
		}
	}
	return Tier{}, false
}
