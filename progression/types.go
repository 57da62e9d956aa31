package progression

import (
	"context"

	"questline/database/models"
)

// Result reports the outcome of one XP change.
type Result struct {
	XPGained  int64
	CurrentXP int64
	Level     int
	LeveledUp bool
	Reward    *models.Item
}

// State is a read-only snapshot of the user's progression.
type State struct {
	XP    int64
	Level int
}

// RewardSource hands out the random item drop on level-up.
type RewardSource interface {
	AwardRandomItem(ctx context.Context, userID string) (*models.Item, error)
}

// Notifier announces level-ups. Optional; a nil notifier is skipped.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, userID string, level int, reward *models.Item) error
}
