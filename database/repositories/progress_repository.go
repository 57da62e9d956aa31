package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"questline/database/models"
)

type ProgressRepository interface {
	Get(ctx context.Context, userID string) (*models.UserProgress, error)
	Upsert(ctx context.Context, progress *models.UserProgress) error
}

type progressRepository struct {
	*BaseRepository
}

func NewProgressRepository(db *bun.DB) ProgressRepository {
	return &progressRepository{BaseRepository: NewBaseRepository(db)}
}

// Get returns the user's progress row, creating the level-1 default when
// none exists yet.
func (r *progressRepository) Get(ctx context.Context, userID string) (*models.UserProgress, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	progress := new(models.UserProgress)
	err := r.DB().NewSelect().
		Model(progress).
		Where("user_id = ?", userID).
		Scan(timeoutCtx)
	if err == nil {
		return progress, nil
	}

	mapped := r.HandleErrorWithID("get", "user_progress", userID, err)
	if !IsNotFound(mapped) {
		return nil, mapped
	}

	progress = &models.UserProgress{UserID: userID, XP: 0, Level: 1, UpdatedAt: time.Now()}
	if err := r.Upsert(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

func (r *progressRepository) Upsert(ctx context.Context, progress *models.UserProgress) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	progress.UpdatedAt = time.Now()
	_, err := r.DB().NewInsert().
		Model(progress).
		On("CONFLICT (user_id) DO UPDATE").
		Set("xp = EXCLUDED.xp").
		Set("level = EXCLUDED.level").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(timeoutCtx)
	return r.HandleErrorWithID("upsert", "user_progress", progress.UserID, err)
}
