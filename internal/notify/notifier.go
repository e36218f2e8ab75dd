package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Category string

const (
	CategoryOpen  Category = "open"
	CategoryClose Category = "close"
	CategoryError Category = "error"
	CategoryDaily Category = "daily"
	CategoryDCA   Category = "dca"
	CategoryInfo  Category = "info"
)

// Notifier: fire-and-forget, ошибки доставки только логируются.
type Notifier interface {
	Send(ctx context.Context, cat Category, msg string)
	Sendf(ctx context.Context, cat Category, format string, args ...any)
}

const (
	queueSize   = 100
	sendTimeout = 10 * time.Second
)

// Telegram шлёт всё в один чат. Категории из muted не отправляются.
// Send только кладёт сообщение в очередь, отправляет один воркер;
// при полной очереди сообщение пропадает с записью в лог.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger

	mu    sync.RWMutex
	muted map[Category]bool

	queue chan outgoing
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

type outgoing struct {
	cat Category
	msg string
}

func NewTelegram(token string, chatID int64, log *zap.Logger, muted []string) (*Telegram, error) {
	b, err := tgbot.NewBotAPIWithClient(token, tgbot.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return newTelegram(b, chatID, log, muted, queueSize), nil
}

func newTelegram(b *tgbot.BotAPI, chatID int64, log *zap.Logger, muted []string, size int) *Telegram {
	t := &Telegram{
		bot:    b,
		chatID: chatID,
		log:    log,
		muted:  make(map[Category]bool),
		queue:  make(chan outgoing, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, m := range muted {
		t.muted[Category(strings.ToLower(strings.TrimSpace(m)))] = true
	}
	return t
}

func (t *Telegram) Send(_ context.Context, cat Category, msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	t.mu.RLock()
	skip := t.muted[cat]
	t.mu.RUnlock()
	if skip {
		return
	}
	select {
	case t.queue <- outgoing{cat: cat, msg: msg}:
	default:
		t.log.Warn("telegram queue is full, message dropped", zap.String("category", string(cat)))
	}
}

func (t *Telegram) Sendf(ctx context.Context, cat Category, format string, args ...any) {
	t.Send(ctx, cat, fmt.Sprintf(format, args...))
}

// Start запускает воркер очереди.
func (t *Telegram) Start() {
	go t.loop()
}

// Stop дожидается отправки того, что уже в очереди, но не дольше ctx.
func (t *Telegram) Stop(ctx context.Context) error {
	t.once.Do(func() { close(t.stop) })
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telegram) loop() {
	defer close(t.done)
	for {
		select {
		case m := <-t.queue:
			t.deliver(m)
		case <-t.stop:
			for {
				select {
				case m := <-t.queue:
					t.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (t *Telegram) deliver(m outgoing) {
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, m.msg)); err != nil {
		t.log.Warn("telegram send failed", zap.String("category", string(m.cat)), zap.Error(err))
	}
}

// Log: когда Telegram не настроен: всё уходит в лог.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Send(_ context.Context, cat Category, msg string) {
	if cat == CategoryError {
		l.log.Error("notify", zap.String("category", string(cat)), zap.String("msg", msg))
		return
	}
	l.log.Info("notify", zap.String("category", string(cat)), zap.String("msg", msg))
}

func (l *Log) Sendf(ctx context.Context, cat Category, format string, args ...any) {
	l.Send(ctx, cat, fmt.Sprintf(format, args...))
}
