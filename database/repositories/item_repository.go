package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"questline/database/models"
)

type ItemRepository interface {
	// Catalog operations
	GetByID(ctx context.Context, id string) (*models.Item, error)
	GetAll(ctx context.Context) ([]*models.Item, error)

	// Inventory operations
	GetInventory(ctx context.Context, userID string) ([]*models.InventorySlot, error)
	GetSlot(ctx context.Context, userID, itemID string) (*models.InventorySlot, error)
	AddToInventory(ctx context.Context, userID, itemID string, quantity int) error
}

type itemRepository struct {
	*BaseRepository
}

func NewItemRepository(db *bun.DB) ItemRepository {
	return &itemRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var item models.Item
	err := r.DB().NewSelect().
		Model(&item).
		Where("id = ?", id).
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "item", id, err)
	}
	return &item, nil
}

func (r *itemRepository) GetAll(ctx context.Context) ([]*models.Item, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var items []*models.Item
	err := r.DB().NewSelect().
		Model(&items).
		Order("id ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("list", "item", err)
	}
	return items, nil
}

func (r *itemRepository) GetInventory(ctx context.Context, userID string) ([]*models.InventorySlot, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var slots []*models.InventorySlot
	err := r.DB().NewSelect().
		Model(&slots).
		Where("user_id = ?", userID).
		Where("quantity > 0").
		Relation("Item").
		Order("obtained_at ASC").
		Scan(timeoutCtx)
	if err != nil {
		return nil, r.HandleError("list", "inventory", err)
	}
	return slots, nil
}

func (r *itemRepository) GetSlot(ctx context.Context, userID, itemID string) (*models.InventorySlot, error) {
	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var slot models.InventorySlot
	err := r.DB().NewSelect().
		Model(&slot).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Scan(timeoutCtx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleErrorWithID("get", "inventory", itemID, err)
	}
	return &slot, nil
}

// AddToInventory increments the user's slot for the item, inserting a new
// slot only when the user does not hold the item yet. One slot per distinct
// item per user.
func (r *itemRepository) AddToInventory(ctx context.Context, userID, itemID string, quantity int) error {
	existing, err := r.GetSlot(ctx, userID, itemID)
	if err != nil {
		return err
	}

	timeoutCtx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if existing != nil {
		_, err = r.DB().NewUpdate().
			Model((*models.InventorySlot)(nil)).
			Set("quantity = quantity + ?", quantity).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("user_id = ? AND item_id = ?", userID, itemID).
			Exec(timeoutCtx)
		return r.HandleErrorWithID("update", "inventory", itemID, err)
	}

	slot := &models.InventorySlot{
		UserID:   userID,
		ItemID:   itemID,
		Quantity: quantity,
	}
	_, err = r.DB().NewInsert().
		Model(slot).
		Exec(timeoutCtx)
	return r.HandleErrorWithID("insert", "inventory", itemID, err)
}
