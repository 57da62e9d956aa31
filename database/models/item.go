package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Rarity    string    `bun:"rarity,notnull"`
	ImageRef  string    `bun:"image_ref"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// InventorySlot holds one row per distinct item per user; awarding the same
// item again bumps Quantity instead of inserting a second slot.
type InventorySlot struct {
	bun.BaseModel `bun:"table:inventory,alias:inv"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     string    `bun:"user_id,notnull"`
	ItemID     string    `bun:"item_id,notnull"`
	Quantity   int       `bun:"quantity,notnull"`
	ObtainedAt time.Time `bun:"obtained_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	// Relations
	Item *Item `bun:"rel:has-one,join:item_id=id"`
}

const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)
