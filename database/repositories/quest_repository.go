package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"questline/database/models"
)

type QuestRepository interface {
	Create(ctx context.Context, quest *models.Quest) (*models.Quest, error)
	GetByID(ctx context.Context, id int64) (*models.Quest, error)
	ListByStoryline(ctx context.Context, storylineID int64) ([]*models.Quest, error)
	Update(ctx context.Context, id int64, patch models.QuestPatch) error
	Delete(ctx context.Context, id int64) error
	BulkReposition(ctx context.Context, storylineID int64, positions []models.QuestPosition) error
}

type questRepository struct {
	*BaseRepository
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{BaseRepository: NewBaseRepository(db)}
}

// Create inserts the quest and returns it with the server-assigned id and
// created_at populated. Deleting the row later removes the whole subtree,
// so callers must delete descendants themselves or rely on Delete here.
func (r *questRepository) Create(ctx context.Context, quest *models.Quest) (*models.Quest, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now()
	}
	_, err := r.DB().NewInsert().
		Model(quest).
		Returning("id, created_at").
		Exec(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("create", "quest", err)
	}
	return quest, nil
}

func (r *questRepository) GetByID(ctx context.Context, id int64) (*models.Quest, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	quest := new(models.Quest)
	err := r.DB().NewSelect().
		Model(quest).
		Where("id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "quest", id, err)
	}
	return quest, nil
}

// ListByStoryline returns every quest row of a storyline ordered by
// position with created_at as tie-break. When the backing store predates
// the position column the query falls back to created_at ordering only.
func (r *questRepository) ListByStoryline(ctx context.Context, storylineID int64) ([]*models.Quest, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var quests []*models.Quest
	err := r.DB().NewSelect().
		Model(&quests).
		Where("storyline_id = ?", storylineID).
		Order("position ASC", "created_at ASC").
		Scan(timeoutCtx)
	if err == nil {
		return quests, nil
	}

	mapped := r.HandleError("list", "quest", err)
	if !IsSchemaError(mapped) {
		return nil, mapped
	}

	slog.Warn("Quest table has no position column, ordering by created_at",
		slog.String("type", "db"),
		slog.Int64("storyline_id", storylineID))

	quests = nil
	err = r.DB().NewSelect().
		Model(&quests).
		ExcludeColumn("position").
		Where("storyline_id = ?", storylineID).
		Order("created_at ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("list_fallback", "quest", err)
	}
	return quests, nil
}

func (r *questRepository) Update(ctx context.Context, id int64, patch models.QuestPatch) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	query := r.DB().NewUpdate().
		Model((*models.Quest)(nil)).
		Where("id = ?", id)
	if patch.Title != nil {
		query = query.Set("title = ?", *patch.Title)
	}
	if patch.Completed != nil {
		query = query.Set("completed = ?", *patch.Completed)
	}
	if patch.Title == nil && patch.Completed == nil {
		return nil
	}

	_, err := query.Exec(timeoutCtx)
	return r.HandleErrorWithID("update", "quest", id, err)
}

// Delete removes the quest row and all of its descendants.
func (r *questRepository) Delete(ctx context.Context, id int64) error {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.deleteSubtreeQuery(id).Exec(timeoutCtx)
	return r.HandleErrorWithID("delete", "quest", id, err)
}

// deleteSubtreeQuery builds the recursive CTE walking from the quest down
// through its descendants and deleting every row it reaches.
func (r *questRepository) deleteSubtreeQuery(id int64) *bun.DeleteQuery {
	return r.DB().NewDelete().
		Model((*models.Quest)(nil)).
		WithRecursive("subtree", r.DB().NewSelect().
			Model((*models.Quest)(nil)).
			Column("id").
			Where("id = ?", id).
			UnionAll(r.DB().NewSelect().
				Model((*models.Quest)(nil)).
				Column("q.id").
				Join("JOIN subtree ON q.parent_id = subtree.id"))).
		Where("id IN (SELECT id FROM subtree)")
}

// BulkReposition persists new root-level positions in one transaction.
// A missing position column surfaces as a SchemaError so callers can keep
// the session-only order instead of failing the operation.
func (r *questRepository) BulkReposition(ctx context.Context, storylineID int64, positions []models.QuestPosition) error {
	if len(positions) == 0 {
		return nil
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, p := range positions {
			if _, err := tx.NewUpdate().
				Model((*models.Quest)(nil)).
				Set("position = ?", p.Position).
				Where("id = ? AND storyline_id = ?", p.ID, storylineID).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	return r.HandleError("bulk_reposition", "quest", err)
}
