// Package app assembles the engine: database, repositories, quest tree
// store, progression and rewards, plus the optional notification and image
// services around them.
package app

import (
	"context"
	"log/slog"

	"questline/database"
	"questline/database/repositories"
	"questline/progression"
	"questline/queststore"
	"questline/rewards"
	"questline/services"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB            *database.DB
	StorylineRepo repositories.StorylineRepository
	QuestRepo     repositories.QuestRepository
	ProgressRepo  repositories.ProgressRepository
	ItemRepo      repositories.ItemRepository

	Store       *queststore.Store
	Progression *progression.Engine
	Rewards     *rewards.Service
	Images      *services.ItemImageService
	Notifier    *services.LevelUpNotifier
}

// SetupDB connects to Postgres and ensures the schema and item catalog.
func (a *App) SetupDB(ctx context.Context) error {
	db, err := database.New(ctx, a.Cfg.DB)
	if err != nil {
		return err
	}
	if err := db.InitializeSchema(ctx); err != nil {
		db.Close()
		return err
	}

	a.DB = db
	a.StorylineRepo = repositories.NewStorylineRepository(db.BunDB())
	a.QuestRepo = repositories.NewQuestRepository(db.BunDB())
	a.ProgressRepo = repositories.NewProgressRepository(db.BunDB())
	a.ItemRepo = repositories.NewItemRepository(db.BunDB())
	return nil
}

// SetupEngine wires the quest tree store, progression engine, rewards and
// optional services for the configured user and loads their state.
func (a *App) SetupEngine(ctx context.Context) error {
	a.Rewards = rewards.NewService(a.ItemRepo)

	cfg := progression.NewDefaultConfig()
	a.Progression = progression.NewEngine(cfg, a.ProgressRepo, a.Rewards, a.Cfg.User.ID)
	if err := a.Progression.Load(ctx); err != nil {
		return err
	}

	if a.Cfg.Spaces.Bucket != "" {
		images, err := services.NewItemImageService(
			a.Cfg.Spaces.Key,
			a.Cfg.Spaces.Secret,
			a.Cfg.Spaces.Region,
			a.Cfg.Spaces.Bucket,
			a.Cfg.Spaces.ItemRoot,
		)
		if err != nil {
			return err
		}
		a.Images = images
	}

	if a.Cfg.Notify.Enabled {
		a.Notifier = services.NewLevelUpNotifier(a.Cfg.Notify.WebhookID, a.Cfg.Notify.Token, a.Images)
		a.Progression.SetNotifier(a.Notifier)
	}

	remote := queststore.NewRemoteStore(a.StorylineRepo, a.QuestRepo)
	a.Store = queststore.New(a.Cfg.User.ID, remote, a.Progression, cfg)
	if err := a.Store.Load(ctx); err != nil {
		return err
	}

	state := a.Progression.Snapshot()
	slog.Info("Engine ready",
		slog.String("user_id", a.Cfg.User.ID),
		slog.Int("storylines", len(a.Store.Storylines())),
		slog.Int("level", state.Level),
		slog.Int64("xp", state.XP))
	return nil
}

func (a *App) Close(ctx context.Context) {
	if a.Notifier != nil {
		a.Notifier.Close(ctx)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
