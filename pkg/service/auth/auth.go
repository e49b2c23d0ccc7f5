// Package auth registers users and authenticates them with JWTs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/user"
	"github.com/coletivobank/coletivo/pkg/repository"
	"github.com/coletivobank/coletivo/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// dummyHash is compared against when the identity is unknown so a failed
// lookup costs as much as a wrong password.
const dummyHash = "$2a$10$7zFqzDbD3RrlkMTczbXG9OWZ0FLOXjIxXzSZ.QZxkVXjXcx7QZQiC"

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)

// Strategy authenticates a user and issues the credential the API checks.
type Strategy interface {
	Login(ctx context.Context, identity, password string) (*user.User, error)
	GenerateToken(ctx context.Context, u *user.User) (string, error)
	GetCurrentUserID(token *jwt.Token) (uuid.UUID, error)
}

type Service struct {
	uow      repository.UnitOfWork
	strategy Strategy
	logger   *slog.Logger
}

func New(
	uow repository.UnitOfWork,
	strategy Strategy,
	logger *slog.Logger,
) *Service {
	return &Service{uow: uow, strategy: strategy, logger: logger}
}

func NewWithJWT(
	uow repository.UnitOfWork,
	cfg *config.Jwt,
	logger *slog.Logger,
) *Service {
	return New(uow, NewJWTStrategy(uow, cfg, logger), logger)
}

// Register creates a user. Username and email must both be unused.
func (s *Service) Register(
	ctx context.Context,
	username, email, password, names string,
) (u *user.User, err error) {
	log := s.logger.With("context", "Register", "username", username)
	log.Debug("Register called")
	u, err = user.New(username, email, password, names)
	if err != nil {
		log.Error("Register failed", "error", err)
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		users, err := uow.UserRepository()
		if err != nil {
			return err
		}
		return users.Create(ctx, u)
	})
	if err != nil {
		log.Error("Register failed", "error", err)
		return nil, err
	}
	log.Info("Register successful", "userID", u.ID)
	return u, nil
}

func (s *Service) Login(
	ctx context.Context,
	identity, password string,
) (u *user.User, err error) {
	log := s.logger.With("context", "Login")
	log.Debug("Login called", "identity", identity)
	u, err = s.strategy.Login(ctx, identity, password)
	if err != nil {
		log.Error("Login failed", "identity", identity, "error", err)
		return nil, err
	}
	log.Info("Login successful", "userID", u.ID)
	return u, nil
}

func (s *Service) GenerateToken(
	ctx context.Context,
	u *user.User,
) (string, error) {
	log := s.logger.With("userID", u.ID)
	log.Debug("GenerateToken called")
	token, err := s.strategy.GenerateToken(ctx, u)
	if err != nil {
		log.Error("GenerateToken failed", "error", err)
		return "", err
	}
	log.Info("GenerateToken successful")
	return token, nil
}

func (s *Service) GetCurrentUserID(token *jwt.Token) (uuid.UUID, error) {
	id, err := s.strategy.GetCurrentUserID(token)
	if err != nil {
		s.logger.Debug("GetCurrentUserID failed", "error", err)
	}
	return id, err
}

// JWTStrategy implements Strategy with HS256 tokens.
type JWTStrategy struct {
	uow    repository.UnitOfWork
	cfg    *config.Jwt
	logger *slog.Logger
	now    func() time.Time
}

func NewJWTStrategy(
	uow repository.UnitOfWork,
	cfg *config.Jwt,
	logger *slog.Logger,
) *JWTStrategy {
	return &JWTStrategy{uow: uow, cfg: cfg, logger: logger, now: time.Now}
}

func (s *JWTStrategy) GenerateToken(
	_ context.Context,
	u *user.User,
) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": u.Username,
		"email":    u.Email,
		"user_id":  u.ID.String(),
		"exp":      s.now().Add(s.cfg.Expiry).Unix(),
	})
	return token.SignedString([]byte(s.cfg.Secret))
}

// Login accepts either an email or a username as identity.
func (s *JWTStrategy) Login(
	ctx context.Context,
	identity, password string,
) (u *user.User, err error) {
	log := s.logger.With("context", "Login", "identity", identity)
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		users, err := uow.UserRepository()
		if err != nil {
			return fmt.Errorf("failed to get user repository: %w", err)
		}
		if utils.IsEmail(identity) {
			u, err = users.GetByEmail(ctx, identity)
		} else {
			u, err = users.GetByUsername(ctx, identity)
		}
		if errors.Is(err, domain.ErrNotFound) {
			_ = utils.CheckPasswordHash(password, dummyHash)
			return ErrInvalidCredentials
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !u.CheckPassword(password) {
		log.Debug("password mismatch")
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetCurrentUserID reads the user_id claim of a validated token.
func (s *JWTStrategy) GetCurrentUserID(token *jwt.Token) (uuid.UUID, error) {
	if token == nil {
		return uuid.Nil, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unexpected claims type", domain.ErrUnauthorized)
	}
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: user_id claim missing", domain.ErrUnauthorized)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user_id claim: %v", domain.ErrUnauthorized, err)
	}
	return id, nil
}

// ParseToken validates a signed token. The HTTP layer uses the fiber JWT
// middleware instead; this serves the CLI and tests.
func (s *JWTStrategy) ParseToken(raw string) (*jwt.Token, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return token, nil
}
