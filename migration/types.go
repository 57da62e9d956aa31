package migration

import "time"

// The pre-rewrite app stored each storyline as one document with the quest
// tree nested inline, either in Mongo or in per-user JSON exports. These
// types mirror that shape.

type LegacyQuest struct {
	ID        string        `bson:"id" json:"id"`
	Title     string        `bson:"title" json:"title"`
	Completed bool          `bson:"completed" json:"completed"`
	Subquests []LegacyQuest `bson:"subquests" json:"subquests"`
}

type LegacyStoryline struct {
	ID        string        `bson:"id" json:"id"`
	UserID    string        `bson:"user_id" json:"userId"`
	Title     string        `bson:"title" json:"title"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	Quests    []LegacyQuest `bson:"quests" json:"quests"`
}

type LegacyProgress struct {
	UserID string `bson:"user_id" json:"userId"`
	XP     int64  `bson:"xp" json:"xp"`
	Level  int    `bson:"level" json:"level"`
}

type LegacyInventorySlot struct {
	UserID   string `bson:"user_id" json:"userId"`
	ItemID   string `bson:"item_id" json:"itemId"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// TableStats tracks per-table migration progress.
type TableStats struct {
	Read     int
	Inserted int
	Skipped  int
}

type MigrationStats struct {
	Tables    map[string]*TableStats
	StartTime time.Time
}

func (s *MigrationStats) table(name string) *TableStats {
	if s.Tables[name] == nil {
		s.Tables[name] = &TableStats{}
	}
	return s.Tables[name]
}
