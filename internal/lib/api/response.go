package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/akorchagin/market-api/internal/apperr"
)

// Response — единый JSON-конверт всех ответов API.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Stack   string      `json:"stack,omitempty"` // только в окружении local/dev
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// OK отправляет успешный ответ со статусом 200.
func OK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Created отправляет успешный ответ со статусом 201.
func Created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// Error мапит ошибку сервиса в конверт {success:false, message}.
// Типизированная apperr.Error несёт собственный статус; всё остальное — 500.
// Трассировка включается в ответ только вне prod.
func Error(w http.ResponseWriter, log *slog.Logger, env string, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	if apiErr, ok := apperr.From(err); ok {
		status = apiErr.Code
		message = apiErr.Message
	}

	log.Error("request failed", slog.Int("status", status), slog.Any("error", err))

	resp := Response{Success: false, Message: message}
	if env != "prod" && status == http.StatusInternalServerError {
		resp.Stack = string(debug.Stack())
	}
	writeJSON(w, status, resp)
}
