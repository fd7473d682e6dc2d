package events

import (
	"context"

	"github.com/akorchagin/market-api/internal/domain/models"
)

// Sink — сток аналитических событий. Публикация строго fire-and-forget:
// ошибка доставки логируется вызывающим и никогда не прерывает основную
// операцию (добавление в корзину, оформление заказа).
type Sink interface {
	Publish(ctx context.Context, event models.AnalyticsEvent) error
	Close() error
}

// NopSink используется, когда брокер не сконфигурирован.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, event models.AnalyticsEvent) error { return nil }

func (NopSink) Close() error { return nil }
