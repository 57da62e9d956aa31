package queststore

import (
	"context"

	"questline/database/models"
	"questline/database/repositories"
)

// remoteAdapter backs RemoteStore with the bun/Postgres repositories.
type remoteAdapter struct {
	storylines repositories.StorylineRepository
	quests     repositories.QuestRepository
}

// NewRemoteStore wires the repository pair into the store's persistence
// contract.
func NewRemoteStore(storylines repositories.StorylineRepository, quests repositories.QuestRepository) RemoteStore {
	return &remoteAdapter{storylines: storylines, quests: quests}
}

func (a *remoteAdapter) CreateStoryline(ctx context.Context, storyline *models.Storyline) (*models.Storyline, error) {
	return a.storylines.Create(ctx, storyline)
}

func (a *remoteAdapter) DeleteStoryline(ctx context.Context, id int64) error {
	return a.storylines.Delete(ctx, id)
}

func (a *remoteAdapter) ListStorylines(ctx context.Context, userID string) ([]*models.Storyline, error) {
	return a.storylines.GetByUserID(ctx, userID)
}

func (a *remoteAdapter) CreateQuest(ctx context.Context, quest *models.Quest) (*models.Quest, error) {
	return a.quests.Create(ctx, quest)
}

func (a *remoteAdapter) UpdateQuest(ctx context.Context, id int64, patch models.QuestPatch) error {
	return a.quests.Update(ctx, id, patch)
}

func (a *remoteAdapter) DeleteQuest(ctx context.Context, id int64) error {
	return a.quests.Delete(ctx, id)
}

func (a *remoteAdapter) BulkReposition(ctx context.Context, storylineID int64, positions []models.QuestPosition) error {
	return a.quests.BulkReposition(ctx, storylineID, positions)
}

func (a *remoteAdapter) ListQuests(ctx context.Context, storylineID int64) ([]*models.Quest, error) {
	return a.quests.ListByStoryline(ctx, storylineID)
}
