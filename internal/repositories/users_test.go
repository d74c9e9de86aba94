package repositories_test

import (
	"context"
	"testing"

	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Ensure(t *testing.T) {
	db, err := setupTestDB()
	require.NoError(t, err)

	ctx := context.Background()
	repo := repositories.NewUserRepository(db)

	require.NoError(t, repo.Ensure(ctx, models.User{ID: "u-1", Username: "alice"}))
	require.NoError(t, repo.Ensure(ctx, models.User{ID: "u-1", Username: "mallory"}))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username, "existing rows are not overwritten")

	assert.Error(t, repo.Ensure(ctx, models.User{}))
}
