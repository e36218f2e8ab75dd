package runner

import (
	"context"

	"scalp_bot/internal/models"
	"scalp_bot/internal/store"
)

// Gateway: всё, что движку нужно от биржи. Реализация не повторяет
// запросы сама и не держит состояния позиций.
type Gateway interface {
	Price(ctx context.Context, symbol string) (models.Price, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	OrderBook(ctx context.Context, symbol string, depth int) (models.OrderBook, error)
	Account(ctx context.Context) (models.Account, error)
	CreateOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// ClosePosition: запасной способ закрыть позицию целиком.
	ClosePosition(ctx context.Context, symbol string) (models.OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	Symbols(ctx context.Context) ([]models.SymbolMeta, error)
	// RealizedPnL по исполнениям ордера; models.ErrUnavailable, если биржа не знает.
	RealizedPnL(ctx context.Context, symbol, orderID string) (float64, error)
}

// StateStore: постоянное хранилище уровней, целей и истории.
type StateStore interface {
	Load() (store.Snapshot, error)
	Update(fn func(w store.Writer) error) error
}
