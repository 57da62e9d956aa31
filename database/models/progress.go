package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserProgress struct {
	bun.BaseModel `bun:"table:user_progress,alias:up"`

	UserID    string    `bun:"user_id,pk"`
	XP        int64     `bun:"xp,notnull,default:0"`
	Level     int       `bun:"level,notnull,default:1"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
