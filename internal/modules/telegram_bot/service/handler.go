package service

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultTradesShown = 10

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if chatID != t.chatID {
		t.log.Warn("command from foreign chat ignored", zap.Int64("chat_id", chatID))
		return
	}

	text, err := t.reply(msg.Command(), msg.CommandArguments())
	if err != nil {
		t.log.Error("command failed", zap.String("command", msg.Command()), zap.Error(err))
		text = "❗️ Ошибка: " + err.Error()
	}
	if _, err := t.Send(ctx, chatID, text); err != nil {
		t.log.Warn("telegram reply failed", zap.Error(err))
	}
}

func (t *Telegram) reply(command, args string) (string, error) {
	switch command {
	case "status":
		return formatStatus(t.health), nil
	case "positions":
		snap, err := t.reader.Load()
		if err != nil {
			return "", err
		}
		return formatPositions(snap), nil
	case "trades":
		recs, err := t.reader.Trades()
		if err != nil {
			return "", err
		}
		return formatTrades(recs, tradesLimit(args)), nil
	default:
		return helpText, nil
	}
}

func tradesLimit(args string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && v > 0 {
		return v
	}
	return defaultTradesShown
}
