package services

import (
	"context"
	"errors"
	"time"

	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"

	"github.com/charmbracelet/log"
)

const ConflictMessage = "The item was modified. Please review the changes and try again."

// TodoItemInput is the allow-list of fields a client may submit. Owner,
// creation time and anything else on the entity are never taken from input.
type TodoItemInput struct {
	ID      uint
	Title   string
	IsDone  bool
	DueDate *time.Time
	Version int
}

// ConflictError is returned when an update lost an optimistic concurrency
// race. Current holds the row as it is stored now.
type ConflictError struct {
	Current models.TodoItem
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return repositories.ErrConcurrency
}

type TodoItemService interface {
	List(ctx context.Context, ownerID string) ([]models.TodoItem, error)
	Get(ctx context.Context, id uint, ownerID string) (models.TodoItem, error)
	GetForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error)
	Create(ctx context.Context, ownerID string, input TodoItemInput) (models.TodoItem, error)
	Update(ctx context.Context, ownerID string, id uint, input TodoItemInput) (models.TodoItem, error)
	Delete(ctx context.Context, id uint, ownerID string) error
	ToggleDone(ctx context.Context, id uint, ownerID string) (models.TodoItem, error)
}

type TodoItemServiceImpl struct {
	items  repositories.TodoItemRepository
	users  repositories.UserRepository
	logger *log.Logger
	now    func() time.Time
}

func NewTodoItemService(items repositories.TodoItemRepository, users repositories.UserRepository, logger *log.Logger) *TodoItemServiceImpl {
	return &TodoItemServiceImpl{
		items:  items,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TodoItemServiceImpl) List(ctx context.Context, ownerID string) ([]models.TodoItem, error) {
	return s.items.ListByOwner(ctx, ownerID)
}

func (s *TodoItemServiceImpl) Get(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return models.TodoItem{}, err
	}
	if item.UserID != ownerID {
		return models.TodoItem{}, repositories.ErrNotFound
	}
	return item, nil
}

func (s *TodoItemServiceImpl) GetForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	return s.items.GetByIDForOwner(ctx, id, ownerID)
}

func (s *TodoItemServiceImpl) Create(ctx context.Context, ownerID string, input TodoItemInput) (models.TodoItem, error) {
	item := models.TodoItem{
		Title:     input.Title,
		IsDone:    false,
		DueDate:   utc(input.DueDate),
		UserID:    ownerID,
		CreatedAt: s.now().UTC(),
	}
	if err := item.Validate(); err != nil {
		return models.TodoItem{}, err
	}

	if s.users != nil {
		if err := s.users.Ensure(ctx, models.User{ID: ownerID}); err != nil {
			return models.TodoItem{}, err
		}
	}

	if err := s.items.Create(ctx, &item); err != nil {
		return models.TodoItem{}, err
	}

	s.logger.Debug("todo item created", "id", item.ID, "owner", ownerID)
	return item, nil
}

func (s *TodoItemServiceImpl) Update(ctx context.Context, ownerID string, id uint, input TodoItemInput) (models.TodoItem, error) {
	if input.ID != id {
		return models.TodoItem{}, repositories.ErrNotFound
	}

	item, err := s.items.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return models.TodoItem{}, err
	}

	item.Title = input.Title
	item.IsDone = input.IsDone
	item.DueDate = utc(input.DueDate)
	if input.Version > 0 {
		item.Version = input.Version
	}

	return s.save(ctx, item)
}

func (s *TodoItemServiceImpl) Delete(ctx context.Context, id uint, ownerID string) error {
	if err := s.items.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.logger.Debug("todo item deleted", "id", id, "owner", ownerID)
	return nil
}

func (s *TodoItemServiceImpl) ToggleDone(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	item, err := s.items.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return models.TodoItem{}, err
	}

	item.IsDone = !item.IsDone
	return s.save(ctx, item)
}

func (s *TodoItemServiceImpl) save(ctx context.Context, item models.TodoItem) (models.TodoItem, error) {
	err := s.items.Update(ctx, &item)
	if errors.Is(err, repositories.ErrConcurrency) {
		return models.TodoItem{}, s.recoverConflict(ctx, item.ID, item.UserID)
	}
	if err != nil {
		return models.TodoItem{}, err
	}
	return item, nil
}

// recoverConflict decides whether a lost update means the row is gone or was
// changed by someone else, and in the latter case returns its current state.
func (s *TodoItemServiceImpl) recoverConflict(ctx context.Context, id uint, ownerID string) error {
	exists, err := s.items.ExistsForOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !exists {
		return repositories.ErrNotFound
	}

	current, err := s.items.GetByIDForOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	s.logger.Info("todo item update conflict", "id", id, "owner", ownerID, "version", current.Version)
	return &ConflictError{Current: current, Message: ConflictMessage}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
