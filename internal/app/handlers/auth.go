package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/akorchagin/market-api/internal/apperr"
	"github.com/akorchagin/market-api/internal/lib/api"
	"github.com/akorchagin/market-api/internal/service"
)

var validate = validator.New()

// RegisterRequest представляет структуру запроса регистрации с тегами валидации
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=user seller admin"`
}

// LoginRequest представляет структуру запроса входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse — пользователь и JWT-токен
type AuthResponse struct {
	User  interface{} `json:"user"`
	Token string      `json:"token"`
}

// RegisterHandler обрабатывает POST /api/auth/register
func RegisterHandler(log *slog.Logger, env string, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RegisterHandler"
		logger := log.With(slog.String("op", op))

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("invalid request"))
			return
		}

		// Валидация структуры запроса с использованием validator
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			api.Error(w, logger, env, apperr.BadRequest("validation error"))
			return
		}

		user, token, err := authService.Register(r.Context(), service.RegisterInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Role:      req.Role,
		})
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.Created(w, "User registered successfully", AuthResponse{User: user, Token: token})
	}
}

// LoginHandler обрабатывает POST /api/auth/login
func LoginHandler(log *slog.Logger, env string, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.LoginHandler"
		logger := log.With(slog.String("op", op))

		var req LoginRequest
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

		user, token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			api.Error(w, logger, env, err)
			return
		}

		api.OK(w, "Login successful", AuthResponse{User: user, Token: token})
	}
}
