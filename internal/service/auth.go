package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	security "github.com/akorchagin/market-api/internal/jwt-new"
	"github.com/akorchagin/market-api/internal/storage"
)

// AuthServiceInterface — регистрация и вход.
type AuthServiceInterface interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// RegisterInput — данные регистрации; роль по умолчанию — user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

// Register создаёт пользователя с хэшированным паролем (bcrypt добавляет соль сам)
// и сразу выдаёт JWT-токен.
func (a *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	const op = "service.AuthService.Register"
	logger := a.log.With(slog.String("op", op), slog.String("email", input.Email))
	logger.Info("registering user")

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, "", fmt.Errorf("%s: %w", op, apperr.BadRequest("Invalid role"))
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user := &models.User{
		Email:     input.Email,
		PassHash:  passHash,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      role,
	}
	user, err = a.userRepo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("email already registered")
			return nil, "", fmt.Errorf("%s: %w", op, apperr.BadRequest("User with this email already exists"))
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, "", fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user registered", slog.Int64("userID", user.ID))
	return user, token, nil
}

// Login проверяет учётные данные и выдаёт JWT-токен.
// Несуществующий email и неверный пароль дают одинаковый ответ.
func (a *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(slog.String("op", op), slog.String("email", email))
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return nil, "", fmt.Errorf("%s: %w", op, apperr.Unauthorized("Invalid email or password"))
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, "", fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return nil, "", fmt.Errorf("%s: %w", op, apperr.Unauthorized("Invalid email or password"))
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return nil, "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID))
	return user, token, nil
}
