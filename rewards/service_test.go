package rewards

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questline/database/models"
)

// fakeItemRepo keeps the catalog and inventory in memory with the same
// stack-or-insert semantics as the Postgres repository.
type fakeItemRepo struct {
	catalog  []*models.Item
	slots    []*models.InventorySlot
	allErr   error
	addErr   error
	allCalls int
}

func (f *fakeItemRepo) GetByID(_ context.Context, id string) (*models.Item, error) {
	for _, item := range f.catalog {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeItemRepo) GetAll(context.Context) ([]*models.Item, error) {
	f.allCalls++
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.catalog, nil
}

func (f *fakeItemRepo) GetInventory(_ context.Context, userID string) ([]*models.InventorySlot, error) {
	var out []*models.InventorySlot
	for _, slot := range f.slots {
		if slot.UserID == userID {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeItemRepo) GetSlot(_ context.Context, userID, itemID string) (*models.InventorySlot, error) {
	for _, slot := range f.slots {
		if slot.UserID == userID && slot.ItemID == itemID {
			return slot, nil
		}
	}
	return nil, nil
}

func (f *fakeItemRepo) AddToInventory(_ context.Context, userID, itemID string, quantity int) error {
	if f.addErr != nil {
		return f.addErr
	}
	for _, slot := range f.slots {
		if slot.UserID == userID && slot.ItemID == itemID {
			slot.Quantity += quantity
			slot.UpdatedAt = time.Now()
			return nil
		}
	}
	f.slots = append(f.slots, &models.InventorySlot{
		UserID:   userID,
		ItemID:   itemID,
		Quantity: quantity,
	})
	return nil
}

func testCatalog() []*models.Item {
	return []*models.Item{
		{ID: "rusty_sword", Name: "Rusty Sword", Rarity: models.RarityCommon},
		{ID: "moon_amulet", Name: "Moon Amulet", Rarity: models.RarityRare},
		{ID: "phoenix_plume", Name: "Phoenix Plume", Rarity: models.RarityEpic},
		{ID: "worldtree_seed", Name: "Worldtree Seed", Rarity: models.RarityLegendary},
	}
}

func TestAwardRandomItemStacksQuantity(t *testing.T) {
	repo := &fakeItemRepo{catalog: []*models.Item{
		{ID: "rusty_sword", Name: "Rusty Sword", Rarity: models.RarityCommon},
	}}
	s := NewService(repo)

	for range 2 {
		item, err := s.AwardRandomItem(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "rusty_sword", item.ID)
	}

	// two awards of the same item share one slot
	require.Len(t, repo.slots, 1)
	assert.Equal(t, 2, repo.slots[0].Quantity)
}

func TestAwardRandomItemDrawsFromFullCatalog(t *testing.T) {
	repo := &fakeItemRepo{catalog: testCatalog()}
	s := NewServiceWithRand(repo, rand.New(rand.NewSource(1)))

	picked := make(map[string]bool)
	for range 200 {
		item, err := s.AwardRandomItem(context.Background(), "user-1")
		require.NoError(t, err)
		picked[item.ID] = true
	}

	// the pick is uniform over the catalog, rarity does not weight it out
	assert.Len(t, picked, 4)
}

func TestAwardRandomItemDeterministicWithSeed(t *testing.T) {
	repoA := &fakeItemRepo{catalog: testCatalog()}
	repoB := &fakeItemRepo{catalog: testCatalog()}
	a := NewServiceWithRand(repoA, rand.New(rand.NewSource(42)))
	b := NewServiceWithRand(repoB, rand.New(rand.NewSource(42)))

	for range 10 {
		itemA, err := a.AwardRandomItem(context.Background(), "user-1")
		require.NoError(t, err)
		itemB, err := b.AwardRandomItem(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, itemA.ID, itemB.ID)
	}
}

func TestAwardRandomItemEmptyCatalog(t *testing.T) {
	s := NewService(&fakeItemRepo{catalog: []*models.Item{}})

	_, err := s.AwardRandomItem(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestCatalogLoadsOnce(t *testing.T) {
	repo := &fakeItemRepo{catalog: testCatalog()}
	s := NewService(repo)

	for range 5 {
		_, err := s.AwardRandomItem(context.Background(), "user-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.allCalls)
}

func TestAwardRandomItemInventoryFailure(t *testing.T) {
	repo := &fakeItemRepo{catalog: testCatalog(), addErr: errors.New("connection refused")}
	s := NewService(repo)

	_, err := s.AwardRandomItem(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Empty(t, repo.slots)
}

func TestInventoryPassthrough(t *testing.T) {
	repo := &fakeItemRepo{catalog: testCatalog()}
	require.NoError(t, repo.AddToInventory(context.Background(), "user-1", "moon_amulet", 3))
	require.NoError(t, repo.AddToInventory(context.Background(), "user-2", "rusty_sword", 1))

	s := NewService(repo)
	slots, err := s.Inventory(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "moon_amulet", slots[0].ItemID)
	assert.Equal(t, 3, slots[0].Quantity)
}
