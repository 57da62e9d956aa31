package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Storyline struct {
	bun.BaseModel `bun:"table:storylines,alias:s"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	Title     string    `bun:"title,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
