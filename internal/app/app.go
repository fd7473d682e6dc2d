package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/akorchagin/market-api/internal/config"
)

// App держит единственное подключение к БД с явным жизненным циклом:
// открывается здесь, закрывается в main через Close. Никакого глобального
// состояния — хэндл передаётся репозиториям и сервисам явно.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	return app, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() error {
	return a.DB.Close()
}
