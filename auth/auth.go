// Package auth registers users and checks their passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/meikuraledutech/chat"
)

var ErrInvalidInput = errors.New("chat: username and password are required")

// UserStore is the subset of chat.Store that auth needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*chat.User, error)
	GetUserByUsername(ctx context.Context, username string) (*chat.User, error)
}

type Service struct {
	users  UserStore
	cost   int
	logger *zap.Logger
}

func New(users UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, cost: bcrypt.DefaultCost, logger: logger}
}

// WithCost sets the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates a user. A taken username yields chat.ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password string) (*chat.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("chat: hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("username", username), zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the password. Unknown users and wrong passwords both yield
// chat.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*chat.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, chat.ErrUserNotFound) {
		return nil, chat.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected", zap.String("username", user.Username))
		return nil, chat.ErrInvalidCredentials
	}

	return user, nil
}
