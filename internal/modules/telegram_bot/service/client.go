package service

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scalp_bot/internal/models"
	health "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/store"
)

// Reader: то, что бот читает из хранилища. Pebble допускает чтение
// параллельно с циклом.
type Reader interface {
	Load() (store.Snapshot, error)
	Trades() ([]models.TradeRecord, error)
}

// Telegram отвечает на команды оператора в одном чате.
// Торговых команд нет, только чтение состояния.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	reader Reader
	health *health.State
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, reader Reader, h *health.State, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID, reader: reader, health: h, log: log}, nil
}

func (t *Telegram) Send(_ context.Context, chatID int64, msg string) (tgbot.Message, error) {
	return t.bot.Send(tgbot.NewMessage(chatID, msg))
}

// Start читает апдейты до отмены контекста.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
}
