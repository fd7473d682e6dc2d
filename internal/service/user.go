package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/storage"
)

// UserList — страница пользователей (админский просмотр).
type UserList struct {
	Users      []*models.User `json:"users"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// ProfileInput — изменяемые поля профиля.
type ProfileInput struct {
	FirstName string
	LastName  string
}

// UserService — чтение и администрирование пользователей.
type UserService interface {
	List(ctx context.Context, filter storage.UserFilter) (*UserList, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, input ProfileInput) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type userService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
}

func NewUserService(log *slog.Logger, userRepo storage.UserStorage) UserService {
	return &userService{log: log, userRepo: userRepo}
}

func (s *userService) List(ctx context.Context, filter storage.UserFilter) (*UserList, error) {
	const op = "service.UserService.List"

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 10
	}

	users, total, err := s.userRepo.ListUsers(ctx, filter)
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list users: %w", op, err)
	}

	return &UserList{
		Users:      users,
		Total:      total,
		Page:       filter.Page,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "service.UserService.GetByID"

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("User not found"))
		}
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, input ProfileInput) (*models.User, error) {
	const op = "service.UserService.UpdateProfile"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", id))

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, apperr.NotFound("User not found"))
		}
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	user.FirstName = input.FirstName
	user.LastName = input.LastName

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		logger.Error("failed to update user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update user: %w", op, err)
	}

	logger.Info("profile updated")
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	const op = "service.UserService.Delete"

	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, apperr.NotFound("User not found"))
		}
		s.log.Error("failed to delete user", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete user: %w", op, err)
	}
	return nil
}
