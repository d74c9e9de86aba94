package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"todo-app/backend/internal/cache"
	"todo-app/backend/internal/logging"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"
	"todo-app/backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTodoItemService struct {
	mock.Mock
}

func (m *MockTodoItemService) List(ctx context.Context, ownerID string) ([]models.TodoItem, error) {
	args := m.Called(ctx, ownerID)
	items, _ := args.Get(0).([]models.TodoItem)
	return items, args.Error(1)
}

func (m *MockTodoItemService) Get(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(models.TodoItem), args.Error(1)
}

func (m *MockTodoItemService) GetForOwner(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(models.TodoItem), args.Error(1)
}

func (m *MockTodoItemService) Create(ctx context.Context, ownerID string, input services.TodoItemInput) (models.TodoItem, error) {
	args := m.Called(ctx, ownerID, input)
	return args.Get(0).(models.TodoItem), args.Error(1)
}

func (m *MockTodoItemService) Update(ctx context.Context, ownerID string, id uint, input services.TodoItemInput) (models.TodoItem, error) {
	args := m.Called(ctx, ownerID, id, input)
	return args.Get(0).(models.TodoItem), args.Error(1)
}

func (m *MockTodoItemService) Delete(ctx context.Context, id uint, ownerID string) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

func (m *MockTodoItemService) ToggleDone(ctx context.Context, id uint, ownerID string) (models.TodoItem, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(models.TodoItem), args.Error(1)
}

func newCachedService(inner services.TodoItemService, c cache.Cache) *services.CachedTodoItemService {
	return services.NewCachedTodoItemService(inner, c, time.Minute, logging.Discard())
}

func TestCachedTodoItemService_ListIsCachedPerOwner(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	aliceItems := []models.TodoItem{{ID: 1, Title: "a", UserID: "alice", Version: 1}}
	bobItems := []models.TodoItem{{ID: 2, Title: "b", UserID: "bob", Version: 1}}
	inner.On("List", ctx, "alice").Return(aliceItems, nil).Once()
	inner.On("List", ctx, "bob").Return(bobItems, nil).Once()

	for i := 0; i < 3; i++ {
		items, err := svc.List(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "a", items[0].Title)
	}

	items, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "b", items[0].Title)

	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	before := []models.TodoItem{{ID: 1, Title: "old", UserID: "alice"}}
	after := []models.TodoItem{{ID: 1, Title: "new", UserID: "alice"}}

	inner.On("List", ctx, "alice").Return(before, nil).Once()
	inner.On("Update", ctx, "alice", uint(1), mock.Anything).Return(after[0], nil).Once()
	inner.On("List", ctx, "alice").Return(after, nil).Once()

	_, err := svc.List(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", 1, services.TodoItemInput{ID: 1, Title: "new"})
	require.NoError(t, err)

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new", items[0].Title)
	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_FailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	inner.On("List", ctx, "alice").Return([]models.TodoItem{{ID: 1}}, nil).Once()
	inner.On("Delete", ctx, uint(9), "alice").Return(repositories.ErrNotFound)

	_, err := svc.List(ctx, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 9, "alice"), repositories.ErrNotFound)

	_, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_ConflictInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	conflict := &services.ConflictError{Current: models.TodoItem{ID: 1, Title: "theirs"}, Message: services.ConflictMessage}
	inner.On("List", ctx, "alice").Return([]models.TodoItem{{ID: 1, Title: "stale"}}, nil).Once()
	inner.On("ToggleDone", ctx, uint(1), "alice").Return(models.TodoItem{}, conflict)
	inner.On("List", ctx, "alice").Return([]models.TodoItem{{ID: 1, Title: "theirs"}}, nil).Once()

	_, err := svc.List(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.ToggleDone(ctx, 1, "alice")
	var got *services.ConflictError
	require.True(t, errors.As(err, &got))

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "theirs", items[0].Title)
	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_RedisDownFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	config := cache.DefaultCacheConfig()
	config.Addr = mr.Addr()
	config.MaxRetries = -1
	config.DialTimeout = 200 * time.Millisecond
	redisCache := cache.NewRedisCache(config)
	t.Cleanup(func() { _ = redisCache.Close() })

	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(redisCache))
	mr.Close()

	items := []models.TodoItem{{ID: 1, Title: "from store", UserID: "alice"}}
	inner.On("List", ctx, "alice").Return(items, nil)
	inner.On("Create", ctx, "alice", mock.Anything).Return(items[0], nil)

	got, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, items, got)

	_, err = svc.Create(ctx, "alice", services.TodoItemInput{Title: "x"})
	assert.NoError(t, err, "cache failures never fail a mutation")
}

func TestCachedTodoItemService_ListErrorNotCached(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	boom := errors.New("db down")
	inner.On("List", ctx, "alice").Return(nil, boom).Once()
	inner.On("List", ctx, "alice").Return([]models.TodoItem{}, nil).Once()

	_, err := svc.List(ctx, "alice")
	assert.ErrorIs(t, err, boom)

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_FailedInvalidationBypassesCacheUntilFlushed(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	config := cache.DefaultCacheConfig()
	config.Addr = mr.Addr()
	config.MaxRetries = -1
	redisCache := cache.NewRedisCache(config)
	t.Cleanup(func() { _ = redisCache.Close() })

	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(redisCache))

	created := models.TodoItem{ID: 1, Title: "new", UserID: "alice", Version: 1}
	inner.On("List", ctx, "alice").Return([]models.TodoItem{}, nil).Once()
	inner.On("Create", ctx, "alice", mock.Anything).Return(created, nil).Once()
	inner.On("List", ctx, "alice").Return([]models.TodoItem{created}, nil).Twice()

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	mr.SetError("ERR redis unavailable")
	_, err = svc.Create(ctx, "alice", services.TodoItemInput{Title: "new"})
	require.NoError(t, err)

	items, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1, "served from the store while the invalidation is pending")

	mr.SetError("")
	items, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1, "old redis entry must not come back after recovery")

	items, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	inner.AssertExpectations(t)
}

func TestCachedTodoItemService_ListRacingMutationIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := new(MockTodoItemService)
	svc := newCachedService(inner, cache.NewMultiLevelCache(nil))

	started := make(chan struct{})
	release := make(chan struct{})
	created := models.TodoItem{ID: 1, Title: "new", UserID: "alice", Version: 1}

	inner.On("List", ctx, "alice").Return([]models.TodoItem{}, nil).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Once()
	inner.On("Create", ctx, "alice", mock.Anything).Return(created, nil).Once()
	inner.On("List", ctx, "alice").Return([]models.TodoItem{created}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := svc.List(ctx, "alice")
		done <- err
	}()

	<-started
	_, err := svc.Create(ctx, "alice", services.TodoItemInput{Title: "new"})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.TodoItem{created}, items)

	items, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].Title)
	inner.AssertExpectations(t)
}
