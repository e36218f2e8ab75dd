// Package journal дублирует историю сделок и усреднений во внешние
// хранилища: CSV-файлы для оператора и Postgres для отчётов.
package journal

import (
	"context"

	"go.uber.org/multierr"

	"scalp_bot/internal/models"
)

type Recorder interface {
	RecordTrade(ctx context.Context, r models.TradeRecord) error
	RecordDCA(ctx context.Context, r models.DcaRecord) error
}

// Multi пишет во все журналы; ошибка одного не мешает остальным.
type Multi []Recorder

func (m Multi) RecordTrade(ctx context.Context, r models.TradeRecord) error {
	var err error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		err = multierr.Append(err, rec.RecordTrade(ctx, r))
	}
	return err
}

func (m Multi) RecordDCA(ctx context.Context, r models.DcaRecord) error {
	var err error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		err = multierr.Append(err, rec.RecordDCA(ctx, r))
	}
	return err
}

// Nop: когда журналы не настроены.
type Nop struct{}

func (Nop) RecordTrade(context.Context, models.TradeRecord) error { return nil }
func (Nop) RecordDCA(context.Context, models.DcaRecord) error     { return nil }
