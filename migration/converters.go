package migration

import (
	"time"

	"questline/database/models"
)

// idAllocator hands out relational quest ids during bulk load; the sequence
// is bumped past the high-water mark afterwards.
type idAllocator struct {
	next int64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

func (a *idAllocator) alloc() int64 {
	id := a.next
	a.next++
	return id
}

// flattenStoryline walks the nested legacy quest tree depth-first and emits
// flat relational rows: each node gets an allocated id, its parent's
// allocated id, and its index among siblings as position. Sibling order in
// the document is the only ordering the legacy app had, so it becomes the
// persisted position.
func flattenStoryline(legacy *LegacyStoryline, storylineID int64, ids *idAllocator) []*models.Quest {
	createdAt := legacy.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var rows []*models.Quest
	var walk func(quests []LegacyQuest, parentID *int64)
	walk = func(quests []LegacyQuest, parentID *int64) {
		for i, q := range quests {
			id := ids.alloc()
			rows = append(rows, &models.Quest{
				ID:          id,
				StorylineID: storylineID,
				ParentID:    parentID,
				Title:       q.Title,
				Completed:   q.Completed,
				Position:    i,
				CreatedAt:   createdAt,
			})
			parent := id
			walk(q.Subquests, &parent)
		}
	}
	walk(legacy.Quests, nil)
	return rows
}

func convertProgress(legacy *LegacyProgress) *models.UserProgress {
	level := legacy.Level
	if level < 1 {
		level = 1
	}
	xp := legacy.XP
	if xp < 0 {
		xp = 0
	}
	return &models.UserProgress{
		UserID:    legacy.UserID,
		XP:        xp,
		Level:     level,
		UpdatedAt: time.Now(),
	}
}

func convertInventory(legacy *LegacyInventorySlot) *models.InventorySlot {
	quantity := legacy.Quantity
	if quantity < 1 {
		quantity = 1
	}
	return &models.InventorySlot{
		UserID:     legacy.UserID,
		ItemID:     legacy.ItemID,
		Quantity:   quantity,
		ObtainedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}
}
