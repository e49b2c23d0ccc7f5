package repository

import (
	"context"

	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a UserRepository on db.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&User{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			Names:        u.Names,
			CreatedAt:    u.CreatedAt,
			UpdatedAt:    u.UpdatedAt,
		}).Error
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) first(ctx context.Context, query string, arg any) (*user.User, error) {
	var m User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return &user.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Names:        m.Names,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}
