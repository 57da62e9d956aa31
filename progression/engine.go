package progression

import (
	"context"
	"log/slog"
	"time"

	"questline/database/models"
	"questline/database/repositories"
	"questline/logger"
)

// Engine is the XP/level state machine for one user. State transitions are
// pure in-memory and never fail; persistence and reward side effects run
// under the silent-log policy, leaving the local state standing when the
// remote store is unreachable.
//
// All access is expected from the single event-driven goroutine that owns
// the user's session.
type Engine struct {
	config   *Config
	repo     repositories.ProgressRepository
	rewards  RewardSource
	notifier Notifier

	userID string
	xp     int64
	level  int
}

func NewEngine(config *Config, repo repositories.ProgressRepository, rewards RewardSource, userID string) *Engine {
	return &Engine{
		config:  config,
		repo:    repo,
		rewards: rewards,
		userID:  userID,
		xp:      0,
		level:   1,
	}
}

// SetNotifier attaches an optional level-up notifier.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Load pulls the persisted progress row into memory. A missing row starts
// the user at level 1 with 0 XP.
func (e *Engine) Load(ctx context.Context) error {
	progress, err := e.repo.Get(ctx, e.userID)
	if err != nil {
		return err
	}
	e.xp = progress.XP
	e.level = progress.Level
	return nil
}

// Snapshot returns the current in-memory progression state.
func (e *Engine) Snapshot() State {
	return State{XP: e.xp, Level: e.level}
}

// AddXP applies an XP delta and evaluates the level threshold at most once.
// A delta large enough to cross two thresholds still yields a single
// level-up; the remainder is carried as XP and re-evaluated on the next
// call. XP never goes below 0 and the level never decrements, so reclaiming
// XP right after a level-up loses the carried remainder at the level-1
// floor rather than de-leveling.
func (e *Engine) AddXP(ctx context.Context, delta int64) *Result {
	newXP := e.xp + delta
	if newXP < 0 {
		newXP = 0
	}

	result := &Result{
		XPGained: delta,
		Level:    e.level,
	}

	if threshold := e.config.Threshold(e.level); newXP >= threshold {
		result.LeveledUp = true
		e.level++
		newXP -= threshold
		result.Level = e.level
	}
	e.xp = newXP
	result.CurrentXP = newXP

	if result.LeveledUp {
		result.Reward = e.awardReward(ctx)
		e.notifyLevelUp(ctx, result)
	}

	e.persist(ctx)
	return result
}

func (e *Engine) awardReward(ctx context.Context) *models.Item {
	if e.rewards == nil {
		return nil
	}
	item, err := e.rewards.AwardRandomItem(ctx, e.userID)
	if err != nil {
		logger.LogError("Failed to award level-up item", err,
			slog.String("user_id", e.userID),
			slog.Int("level", e.level))
		return nil
	}
	return item
}

func (e *Engine) notifyLevelUp(ctx context.Context, result *Result) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyLevelUp(ctx, e.userID, result.Level, result.Reward); err != nil {
		slog.Warn("Level-up notification failed",
			slog.String("user_id", e.userID),
			slog.Any("error", err))
	}
}

func (e *Engine) persist(ctx context.Context) {
	progress := &models.UserProgress{
		UserID:    e.userID,
		XP:        e.xp,
		Level:     e.level,
		UpdatedAt: time.Now(),
	}
	if err := e.repo.Upsert(ctx, progress); err != nil {
		slog.Error("Failed to persist progression state",
			slog.String("type", "db"),
			slog.String("user_id", e.userID),
			slog.Any("error", err))
	}
}
