package database

import (
	"context"
	"log/slog"

	"questline/database/models"
)

// InitializeItemData inserts the drop catalog into the database. Items are
// seeded once; reruns are skipped so manually curated rows survive.
func (db *DB) InitializeItemData(ctx context.Context) error {
	var itemCount int
	err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&itemCount)
	if err == nil && itemCount > 0 {
		slog.Info("Item catalog already initialized, skipping",
			slog.Int("existing_items", itemCount))
		return nil
	}

	slog.Info("Initializing item catalog...")

	items := []models.Item{
		{ID: "rusty_sword", Name: "Rusty Sword", Rarity: models.RarityCommon, ImageRef: "items/rusty_sword.png"},
		{ID: "travelers_cloak", Name: "Traveler's Cloak", Rarity: models.RarityCommon, ImageRef: "items/travelers_cloak.png"},
		{ID: "oak_staff", Name: "Oak Staff", Rarity: models.RarityCommon, ImageRef: "items/oak_staff.png"},
		{ID: "iron_buckler", Name: "Iron Buckler", Rarity: models.RarityCommon, ImageRef: "items/iron_buckler.png"},
		{ID: "healers_satchel", Name: "Healer's Satchel", Rarity: models.RarityCommon, ImageRef: "items/healers_satchel.png"},
		{ID: "silver_compass", Name: "Silver Compass", Rarity: models.RarityRare, ImageRef: "items/silver_compass.png"},
		{ID: "moonlit_dagger", Name: "Moonlit Dagger", Rarity: models.RarityRare, ImageRef: "items/moonlit_dagger.png"},
		{ID: "enchanted_quill", Name: "Enchanted Quill", Rarity: models.RarityRare, ImageRef: "items/enchanted_quill.png"},
		{ID: "stormcall_horn", Name: "Stormcall Horn", Rarity: models.RarityEpic, ImageRef: "items/stormcall_horn.png"},
		{ID: "phoenix_plume", Name: "Phoenix Plume", Rarity: models.RarityEpic, ImageRef: "items/phoenix_plume.png"},
		{ID: "dragonbone_crown", Name: "Dragonbone Crown", Rarity: models.RarityLegendary, ImageRef: "items/dragonbone_crown.png"},
		{ID: "worldtree_seed", Name: "Worldtree Seed", Rarity: models.RarityLegendary, ImageRef: "items/worldtree_seed.png"},
	}

	for i := range items {
		_, err := db.bunDB.NewInsert().
			Model(&items[i]).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	slog.Info("Item catalog initialized",
		slog.Int("items", len(items)))
	return nil
}
