package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID          int64     `bun:"id,pk,autoincrement"`
	StorylineID int64     `bun:"storyline_id,notnull"`
	ParentID    *int64    `bun:"parent_id"`
	Title       string    `bun:"title,notnull"`
	Completed   bool      `bun:"completed,notnull,default:false"`
	Position    int       `bun:"position,notnull,default:0"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// QuestPatch carries the mutable quest fields for partial updates. Nil
// fields are left untouched.
type QuestPatch struct {
	Title     *string
	Completed *bool
}

// QuestPosition pairs a quest id with its new sibling position for bulk
// repositioning.
type QuestPosition struct {
	ID       int64
	Position int
}
