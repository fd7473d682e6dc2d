package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/jwt-new/jwtmiddleware"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
	"github.com/akorchagin/market-api/internal/storage"
)

// UpdateProfileRequest — изменяемые поля профиля пользователя.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// ProfileHandler обрабатывает GET /api/users/profile — профиль текущего пользователя.
func ProfileHandler(log *slog.Logger, env string, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		user, err := userService.GetByID(r.Context(), userID)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Profile retrieved", user)
	}
}

// UpdateUserHandler обрабатывает PUT /api/users/{id}. Пользователь меняет
// только свой профиль, админ — любой.
func UpdateUserHandler(log *slog.Logger, env string, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateUserHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		targetID, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		role, _ := jwtmiddleware.RoleFromContext(r.Context())
		if targetID != userID && role != models.RoleAdmin {
			api.Error(w, logger, env, apperr.Forbidden("Access denied"))
			return
		}

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("validation error"))
			return
		}

		user, err := userService.UpdateProfile(r.Context(), targetID, service.ProfileInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Profile updated", user)
	}
}

// ListUsersHandler обрабатывает GET /api/users (admin).
func ListUsersHandler(log *slog.Logger, env string, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListUsersHandler"
		logger := log.With(slog.String("op", op))

		filter := storage.UserFilter{
			Search: r.URL.Query().Get("search"),
			Role:   r.URL.Query().Get("role"),
			Page:   queryInt(r, "page", 1),
			Limit:  queryInt(r, "limit", 10),
		}
		if raw := r.URL.Query().Get("dateFrom"); raw != "" {
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				filter.DateFrom = &t
			}
		}
		if raw := r.URL.Query().Get("dateTo"); raw != "" {
			if t, err := time.Parse("2006-01-02", raw); err == nil {
				filter.DateTo = &t
			}
		}

		list, err := userService.List(r.Context(), filter)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Users retrieved", list)
	}
}

// GetUserHandler обрабатывает GET /api/users/{id} (admin).
func GetUserHandler(log *slog.Logger, env string, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetUserHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		user, err := userService.GetByID(r.Context(), id)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "User retrieved", user)
	}
}

// DeleteUserHandler обрабатывает DELETE /api/users/{id}. Пользователь удаляет
// только свой аккаунт, админ — любой.
func DeleteUserHandler(log *slog.Logger, env string, userService service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteUserHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			api.Error(w, logger, env, apperr.Unauthorized("Authentication required"))
			return
		}

		id, err := idParam(r, "id")
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		role, _ := jwtmiddleware.RoleFromContext(r.Context())
		if id != userID && role != models.RoleAdmin {
			api.Error(w, logger, env, apperr.Forbidden("Access denied"))
			return
		}

		if err := userService.Delete(r.Context(), id); err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "User deleted", nil)
	}
}
