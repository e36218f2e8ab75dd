// Package retry оборачивает вызовы биржи: фиксированное число попыток,
// фиксированная пауза, алерт оператору после исчерпания.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind определяет, что делать после исчерпания попыток.
type Kind int

const (
	// KindTrade: ордера и закрытия: алерт обязателен.
	KindTrade Kind = iota
	// KindQuery: цены, стаканы, аккаунт: тоже алерт.
	KindQuery
	// KindHistory: свечи и история: только лог.
	KindHistory
)

func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindQuery:
		return "query"
	case KindHistory:
		return "history"
	}
	return "unknown"
}

var (
	ErrExhausted = errors.New("retry attempts exhausted")
	errPermanent = errors.New("permanent error")
)

// Permanent помечает ошибку как неповторяемую (отказ биржи по бизнес-причине).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errPermanent, err)
}

func IsPermanent(err error) bool { return errors.Is(err, errPermanent) }

type AlertFunc func(ctx context.Context, op string, attempts int, err error)

type Policy struct {
	attempts  int
	delay     time.Duration
	log       *zap.Logger
	alert     AlertFunc
	exhausted func(op string)
	stop      func(error) bool
}

type Option func(*Policy)

func WithAlert(fn AlertFunc) Option { return func(p *Policy) { p.alert = fn } }

// WithStop: ошибки, после которых повторять бессмысленно (нет данных,
// ордер уже не существует). Алерта по ним нет.
func WithStop(fn func(error) bool) Option { return func(p *Policy) { p.stop = fn } }

// WithExhaustedHook: для метрик.
func WithExhaustedHook(fn func(op string)) Option { return func(p *Policy) { p.exhausted = fn } }

func New(attempts int, delay time.Duration, log *zap.Logger, opts ...Option) *Policy {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Policy{attempts: attempts, delay: delay, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Policy) Attempts() int { return p.attempts }

// Do выполняет fn до attempts раз. Неповторяемая ошибка и отмена контекста
// прерывают цикл сразу и алерт не вызывают.
func (p *Policy) Do(ctx context.Context, op string, kind Kind, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if IsPermanent(last) || errors.Is(last, context.Canceled) || (p.stop != nil && p.stop(last)) {
			return fmt.Errorf("%s: %w", op, last)
		}

		p.log.Warn("attempt failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("of", p.attempts),
			zap.Error(last),
		)

		if attempt < p.attempts {
			if err := sleep(ctx, p.delay); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	p.log.Error("retries exhausted", zap.String("op", op), zap.Stringer("kind", kind), zap.Error(last))
	if p.exhausted != nil {
		p.exhausted(op)
	}
	if kind != KindHistory && p.alert != nil {
		p.alert(ctx, op, p.attempts, last)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExhausted, last)
}

// Call: Do для функций с результатом.
func Call[T any](ctx context.Context, p *Policy, op string, kind Kind, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, kind, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
