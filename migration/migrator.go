package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"questline/database/models"
	"questline/logger"
)

// Migrator imports the pre-rewrite app's data into the relational schema.
// Storyline documents come either from a live Mongo database or from JSON
// export files in dataDir; quest trees are flattened into rows and bulk
// loaded with CopyFrom.
type Migrator struct {
	pgDB    *bun.DB
	pool    *pgxpool.Pool
	mongoDB *mongo.Database
	dataDir string
	stats   MigrationStats
}

func NewMigrator(pgDB *bun.DB, pool *pgxpool.Pool, dataDir string) *Migrator {
	return &Migrator{
		pgDB:    pgDB,
		pool:    pool,
		dataDir: dataDir,
		stats: MigrationStats{
			Tables:    make(map[string]*TableStats),
			StartTime: time.Now(),
		},
	}
}

// WithMongo attaches a live legacy database as the source instead of JSON
// export files.
func (m *Migrator) WithMongo(ctx context.Context, uri, database string) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("failed to connect to legacy mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("legacy mongo unreachable: %w", err)
	}
	m.mongoDB = client.Database(database)
	return nil
}

func (m *Migrator) MigrateAll(ctx context.Context) error {
	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"migrate_storylines", m.migrateStorylines},
		{"migrate_progress", m.migrateProgress},
		{"migrate_inventory", m.migrateInventory},
	}
	for _, phase := range phases {
		start := time.Now()
		err := phase.run(ctx)
		logger.LogOperation(phase.name, time.Since(start), err)
		if err != nil {
			return err
		}
	}
	m.logSummary()
	return nil
}

func (m *Migrator) migrateStorylines(ctx context.Context) error {
	var legacy []LegacyStoryline
	if err := m.loadSource(ctx, "storylines", "storylines.json", &legacy); err != nil {
		return err
	}
	m.stats.table("storylines").Read = len(legacy)

	ids := newIDAllocator()
	for i := range legacy {
		storyline := &models.Storyline{
			UserID:    legacy[i].UserID,
			Title:     legacy[i].Title,
			CreatedAt: legacy[i].CreatedAt,
		}
		if storyline.CreatedAt.IsZero() {
			storyline.CreatedAt = time.Now()
		}
		if _, err := m.pgDB.NewInsert().
			Model(storyline).
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert storyline %q: %w", legacy[i].Title, err)
		}
		m.stats.table("storylines").Inserted++

		rows := flattenStoryline(&legacy[i], storyline.ID, ids)
		m.stats.table("quests").Read += len(rows)
		if err := m.copyQuests(ctx, rows); err != nil {
			return err
		}
		m.stats.table("quests").Inserted += len(rows)
	}

	// Bump the sequence past the ids CopyFrom wrote.
	if ids.next > 1 {
		if _, err := m.pool.Exec(ctx,
			`SELECT setval(pg_get_serial_sequence('quests', 'id'), $1)`, ids.next-1); err != nil {
			return fmt.Errorf("failed to advance quest id sequence: %w", err)
		}
	}
	return nil
}

func (m *Migrator) copyQuests(ctx context.Context, rows []*models.Quest) error {
	if len(rows) == 0 {
		return nil
	}

	source := make([][]interface{}, len(rows))
	for i, q := range rows {
		source[i] = []interface{}{q.ID, q.StorylineID, q.ParentID, q.Title, q.Completed, q.Position, q.CreatedAt}
	}

	copied, err := m.pool.CopyFrom(ctx,
		pgx.Identifier{"quests"},
		[]string{"id", "storyline_id", "parent_id", "title", "completed", "position", "created_at"},
		pgx.CopyFromRows(source),
	)
	if err != nil {
		return fmt.Errorf("failed to copy quests: %w", err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("quest copy incomplete: %d of %d rows", copied, len(rows))
	}
	return nil
}

func (m *Migrator) migrateProgress(ctx context.Context) error {
	var legacy []LegacyProgress
	if err := m.loadSource(ctx, "progress", "progress.json", &legacy); err != nil {
		return err
	}
	m.stats.table("user_progress").Read = len(legacy)

	for i := range legacy {
		progress := convertProgress(&legacy[i])
		if _, err := m.pgDB.NewInsert().
			Model(progress).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert progress for %s: %w", progress.UserID, err)
		}
		m.stats.table("user_progress").Inserted++
	}
	return nil
}

func (m *Migrator) migrateInventory(ctx context.Context) error {
	var legacy []LegacyInventorySlot
	if err := m.loadSource(ctx, "inventory", "inventory.json", &legacy); err != nil {
		return err
	}
	m.stats.table("inventory").Read = len(legacy)

	for i := range legacy {
		slot := convertInventory(&legacy[i])

		// Items not in the new catalog cannot be carried over.
		exists, err := m.pgDB.NewSelect().
			Model((*models.Item)(nil)).
			Where("id = ?", slot.ItemID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check item %s: %w", slot.ItemID, err)
		}
		if !exists {
			slog.Warn("Skipping inventory slot for unknown item",
				slog.String("user_id", slot.UserID),
				slog.String("item_id", slot.ItemID))
			m.stats.table("inventory").Skipped++
			continue
		}

		if _, err := m.pgDB.NewInsert().
			Model(slot).
			On("CONFLICT (user_id, item_id) DO UPDATE").
			Set("quantity = inventory.quantity + EXCLUDED.quantity").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert inventory slot: %w", err)
		}
		m.stats.table("inventory").Inserted++
	}
	return nil
}

// loadSource reads documents from the attached Mongo collection, falling
// back to the JSON export file when no Mongo source is configured.
func (m *Migrator) loadSource(ctx context.Context, collection, file string, out interface{}) error {
	if m.mongoDB != nil {
		cursor, err := m.mongoDB.Collection(collection).Find(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("failed to query legacy %s: %w", collection, err)
		}
		defer cursor.Close(ctx)
		if err := cursor.All(ctx, out); err != nil {
			return fmt.Errorf("failed to decode legacy %s: %w", collection, err)
		}
		return nil
	}

	path := filepath.Join(m.dataDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Legacy export file missing, skipping",
				slog.String("path", path))
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (m *Migrator) logSummary() {
	elapsed := time.Since(m.stats.StartTime)
	for name, stats := range m.stats.Tables {
		slog.Info("Migration table done",
			slog.String("table", name),
			slog.Int("read", stats.Read),
			slog.Int("inserted", stats.Inserted),
			slog.Int("skipped", stats.Skipped))
	}
	slog.Info("Migration finished",
		slog.Duration("took", elapsed))
}
