// Package rewards implements the random item drop awarded on level-up and
// the stack-or-insert inventory bookkeeping behind it.
package rewards

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"

	"questline/database/models"
	"questline/database/repositories"
)

var ErrEmptyCatalog = errors.New("item catalog is empty")

type Service struct {
	repo repositories.ItemRepository
	rng  *rand.Rand

	mu      sync.Mutex
	catalog []*models.Item
}

func NewService(repo repositories.ItemRepository) *Service {
	return &Service{
		repo: repo,
		rng:  rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewServiceWithRand injects a seeded source, used by tests.
func NewServiceWithRand(repo repositories.ItemRepository, rng *rand.Rand) *Service {
	return &Service{repo: repo, rng: rng}
}

// AwardRandomItem picks one item uniformly at random from the full catalog
// and adds it to the user's inventory. Rarity does not weight the pick. An
// existing slot for the item has its quantity incremented; otherwise a new
// slot starts at 1. The awarded item is returned so callers can surface a
// notification.
func (s *Service) AwardRandomItem(ctx context.Context, userID string) (*models.Item, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}

	item := catalog[s.rng.Intn(len(catalog))]
	if err := s.repo.AddToInventory(ctx, userID, item.ID, 1); err != nil {
		return nil, err
	}

	slog.Info("Item awarded",
		slog.String("type", "op"),
		slog.String("user_id", userID),
		slog.String("item_id", item.ID),
		slog.String("rarity", item.Rarity))
	return item, nil
}

// Inventory returns the user's slots with item relations loaded.
func (s *Service) Inventory(ctx context.Context, userID string) ([]*models.InventorySlot, error) {
	return s.repo.GetInventory(ctx, userID)
}

// loadCatalog caches the catalog after the first read. The catalog is
// seeded at schema init and read-only afterwards.
func (s *Service) loadCatalog(ctx context.Context) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil {
		return s.catalog, nil
	}
	items, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog = items
	return items, nil
}
