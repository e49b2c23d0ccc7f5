package user

import (
	"strings"
	"time"

	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/utils"
	"github.com/google/uuid"
)

// User is a registered person who can belong to funds.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Names        string    `json:"names"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"updated"`
}

// New creates a User with a hashed password and current timestamps.
func New(username, email, password, names string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Validationf("username cannot be empty")
	}
	if !utils.IsEmail(email) {
		return nil, domain.Validationf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, domain.Validationf("password must have at least 8 characters")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Names:        strings.TrimSpace(names),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return utils.CheckPasswordHash(password, u.PasswordHash)
}
