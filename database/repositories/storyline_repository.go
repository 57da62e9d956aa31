package repositories

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"questline/database/models"
)

type StorylineRepository interface {
	Create(ctx context.Context, storyline *models.Storyline) (*models.Storyline, error)
	GetByID(ctx context.Context, id int64) (*models.Storyline, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Storyline, error)
	Update(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error
}

type storylineRepository struct {
	*BaseRepository
}

func NewStorylineRepository(db *bun.DB) StorylineRepository {
	return &storylineRepository{BaseRepository: NewBaseRepository(db)}
}

// Create inserts the storyline and returns it with the server-assigned id
// and created_at populated.
func (r *storylineRepository) Create(ctx context.Context, storyline *models.Storyline) (*models.Storyline, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if storyline.CreatedAt.IsZero() {
		storyline.CreatedAt = time.Now()
	}
	_, err := r.DB().NewInsert().
		Model(storyline).
		Returning("id, created_at").
		Exec(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("create", "storyline", err)
	}
	return storyline, nil
}

func (r *storylineRepository) GetByID(ctx context.Context, id int64) (*models.Storyline, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	storyline := new(models.Storyline)
	err := r.DB().NewSelect().
		Model(storyline).
		Where("id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "storyline", id, err)
	}
	return storyline, nil
}

func (r *storylineRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Storyline, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var storylines []*models.Storyline
	err := r.DB().NewSelect().
		Model(&storylines).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("list", "storyline", err)
	}
	return storylines, nil
}

func (r *storylineRepository) Update(ctx context.Context, id int64, title string) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.DB().NewUpdate().
		Model((*models.Storyline)(nil)).
		Set("title = ?", title).
		Where("id = ?", id).
		Exec(timeoutCtx)
	return r.HandleErrorWithID("update", "storyline", id, err)
}

// Delete removes the storyline and cascades to every quest in it.
func (r *storylineRepository) Delete(ctx context.Context, id int64) error {
	return r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Quest)(nil)).
			Where("storyline_id = ?", id).
			Exec(ctx); err != nil {
			return r.HandleErrorWithID("delete_quests", "storyline", id, err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Storyline)(nil)).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return r.HandleErrorWithID("delete", "storyline", id, err)
		}
		return nil
	})
}
