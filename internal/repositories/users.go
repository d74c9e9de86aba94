package repositories

import (
	"context"
	"fmt"

	"todo-app/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	// Ensure inserts the user row if it does not exist yet. Existing rows are
	// left untouched; the identity subsystem owns their contents.
	Ensure(ctx context.Context, user models.User) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Ensure(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return fmt.Errorf("failed to ensure user: empty id")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Omit("TodoItems").
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}
