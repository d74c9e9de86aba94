package repositories

import (
	"context"
	"errors"
	"fmt"

	"todo-app/backend/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound covers both a missing row and a row owned by someone else.
	ErrNotFound = errors.New("todo item not found")
	// ErrConcurrency means the row changed or vanished since it was read.
	ErrConcurrency = errors.New("todo item was modified concurrently")
)

type TodoItemRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.TodoItem, error)
	GetByID(ctx context.Context, id uint) (models.TodoItem, error)
	GetByIDForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error)
	Create(ctx context.Context, item *models.TodoItem) error
	Update(ctx context.Context, item *models.TodoItem) error
	Delete(ctx context.Context, id uint, ownerID string) error
	ExistsForOwner(ctx context.Context, id uint, ownerID string) (bool, error)
}

type GormTodoItemRepository struct {
	db *gorm.DB
}

func NewTodoItemRepository(db *gorm.DB) *GormTodoItemRepository {
	return &GormTodoItemRepository{db: db}
}

func (r *GormTodoItemRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.TodoItem, error) {
	items := []models.TodoItem{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list todo items: %w", err)
	}
	return items, nil
}

func (r *GormTodoItemRepository) GetByID(ctx context.Context, id uint) (models.TodoItem, error) {
	var item models.TodoItem
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&item).Error
	return item, translate(err, "failed to load todo item")
}

func (r *GormTodoItemRepository) GetByIDForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	var item models.TodoItem
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&item).Error
	return item, translate(err, "failed to load todo item")
}

func (r *GormTodoItemRepository) Create(ctx context.Context, item *models.TodoItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.ID = 0
	item.Version = 1
	if err := r.db.WithContext(ctx).Omit("User").Create(item).Error; err != nil {
		return fmt.Errorf("failed to create todo item: %w", err)
	}
	return nil
}

// Update writes the client-mutable columns of item if, and only if, the stored
// row still carries item.Version. The owner and creation time are never written.
func (r *GormTodoItemRepository) Update(ctx context.Context, item *models.TodoItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.TodoItem{}).
		Where("id = ? AND user_id = ? AND version = ?", item.ID, item.UserID, item.Version).
		Updates(map[string]interface{}{
			"title":    item.Title,
			"is_done":  item.IsDone,
			"due_date": item.DueDate,
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update todo item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrency
	}

	item.Version++
	return nil
}

func (r *GormTodoItemRepository) Delete(ctx context.Context, id uint, ownerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&models.TodoItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete todo item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormTodoItemRepository) ExistsForOwner(ctx context.Context, id uint, ownerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TodoItem{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check todo item: %w", err)
	}
	return count > 0, nil
}

func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
