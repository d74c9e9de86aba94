package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"todo-app/backend/internal/cache"
	"todo-app/backend/internal/models"

	"github.com/charmbracelet/log"
)

const DefaultListTTL = 5 * time.Minute

// CachedTodoItemService keeps each owner's list in the cache and drops it on
// every successful mutation. Cache trouble is logged and never fails a call.
//
// A list read from the store is only cached if no invalidation happened
// while it was being read. An owner whose invalidation failed is served from
// the store until a later delete of the key succeeds.
type CachedTodoItemService struct {
	service TodoItemService
	cache   cache.Cache
	ttl     time.Duration
	logger  *log.Logger

	mu         sync.Mutex
	generation uint64
	unflushed  map[string]uint64
}

func NewCachedTodoItemService(service TodoItemService, c cache.Cache, ttl time.Duration, logger *log.Logger) *CachedTodoItemService {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &CachedTodoItemService{
		service:   service,
		cache:     c,
		ttl:       ttl,
		logger:    logger,
		unflushed: make(map[string]uint64),
	}
}

func ownerListKey(ownerID string) string {
	return fmt.Sprintf("todo_items:owner:%s", ownerID)
}

func (s *CachedTodoItemService) List(ctx context.Context, ownerID string) ([]models.TodoItem, error) {
	key := ownerListKey(ownerID)
	if !s.flush(ctx, key) {
		return s.service.List(ctx, ownerID)
	}
	generation := s.currentGeneration()

	var cached []models.TodoItem
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("todo item cache read failed", "key", key, "err", err)
	}

	items, err := s.service.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.fill(ctx, key, generation, items)
	return items, nil
}

func (s *CachedTodoItemService) Get(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	return s.service.Get(ctx, id, ownerID)
}

func (s *CachedTodoItemService) GetForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	return s.service.GetForOwner(ctx, id, ownerID)
}

func (s *CachedTodoItemService) Create(ctx context.Context, ownerID string, input TodoItemInput) (models.TodoItem, error) {
	item, err := s.service.Create(ctx, ownerID, input)
	if err != nil {
		return item, err
	}
	s.invalidate(ctx, ownerID)
	return item, nil
}

func (s *CachedTodoItemService) Update(ctx context.Context, ownerID string, id uint, input TodoItemInput) (models.TodoItem, error) {
	item, err := s.service.Update(ctx, ownerID, id, input)
	var conflict *ConflictError
	if err == nil || errors.As(err, &conflict) {
		s.invalidate(ctx, ownerID)
	}
	return item, err
}

func (s *CachedTodoItemService) Delete(ctx context.Context, id uint, ownerID string) error {
	if err := s.service.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

func (s *CachedTodoItemService) ToggleDone(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	item, err := s.service.ToggleDone(ctx, id, ownerID)
	var conflict *ConflictError
	if err == nil || errors.As(err, &conflict) {
		s.invalidate(ctx, ownerID)
	}
	return item, err
}

func (s *CachedTodoItemService) Stats() map[string]interface{} {
	return s.cache.Stats()
}

func (s *CachedTodoItemService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// fill caches items read under generation unless an invalidation has run
// since. The lock is held across Set so an invalidation cannot slip between
// the check and the write.
func (s *CachedTodoItemService) fill(ctx context.Context, key string, generation uint64, items []models.TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return
	}
	if _, pending := s.unflushed[key]; pending {
		return
	}
	if err := s.cache.Set(ctx, key, items, s.ttl); err != nil {
		s.logger.Warn("todo item cache write failed", "key", key, "err", err)
	}
}

// flush retries a failed invalidation of key. It reports whether the cache
// may be used for key.
func (s *CachedTodoItemService) flush(ctx context.Context, key string) bool {
	s.mu.Lock()
	mark, pending := s.unflushed[key]
	s.mu.Unlock()
	if !pending {
		return true
	}

	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Debug("todo item cache still unreachable", "key", key, "err", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unflushed[key] != mark {
		return false
	}
	delete(s.unflushed, key)
	s.generation++
	return true
}

func (s *CachedTodoItemService) invalidate(ctx context.Context, ownerID string) {
	key := ownerListKey(ownerID)

	s.mu.Lock()
	s.generation++
	mark := s.generation
	s.mu.Unlock()

	err := s.cache.Delete(ctx, key)
	if err != nil {
		s.logger.Warn("todo item cache invalidation failed", "key", key, "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous, pending := s.unflushed[key]
	switch {
	case err != nil && previous < mark:
		s.unflushed[key] = mark
	case err == nil && pending && previous < mark:
		delete(s.unflushed, key)
	}
}
