package journal

import (
	"context"

	"github.com/pkg/errors"

	"scalp_bot/internal/models"
	"scalp_bot/pkg/db"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS trade_history (
	id               TEXT PRIMARY KEY,
	ts               TIMESTAMPTZ NOT NULL,
	symbol           TEXT NOT NULL,
	direction        TEXT NOT NULL,
	entry_price      DOUBLE PRECISION NOT NULL,
	exit_price       DOUBLE PRECISION NOT NULL,
	exit_target      DOUBLE PRECISION NOT NULL,
	realized_pnl     DOUBLE PRECISION NOT NULL,
	pnl_source       TEXT NOT NULL,
	holding_seconds  BIGINT NOT NULL,
	close_reason     TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS dca_history (
	id              TEXT PRIMARY KEY,
	ts              TIMESTAMPTZ NOT NULL,
	symbol          TEXT NOT NULL,
	direction       TEXT NOT NULL,
	original_price  DOUBLE PRECISION NOT NULL,
	dca_price       DOUBLE PRECISION NOT NULL,
	dca_size        DOUBLE PRECISION NOT NULL,
	average_price   DOUBLE PRECISION NOT NULL,
	new_exit        DOUBLE PRECISION NOT NULL,
	entry_index     INT NOT NULL
)`}

// Postgres: зеркало истории в БД. Повторная запись того же id игнорируется.
type Postgres struct {
	db db.Runner
}

func NewPostgres(r db.Runner) *Postgres {
	return &Postgres{db: r}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	err := p.db.InTx(ctx, func(ctx context.Context, q db.Querier) error {
		for _, stmt := range schema {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "ensure journal schema")
}

const insertTrade = `
INSERT INTO trade_history
	(id, ts, symbol, direction, entry_price, exit_price, exit_target, realized_pnl, pnl_source, holding_seconds, close_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING`

const insertDCA = `
INSERT INTO dca_history
	(id, ts, symbol, direction, original_price, dca_price, dca_size, average_price, new_exit, entry_index)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING`

func (p *Postgres) RecordTrade(ctx context.Context, r models.TradeRecord) error {
	_, err := p.db.Exec(ctx, insertTrade,
		r.ID, r.Timestamp, r.Symbol, string(r.Direction), r.EntryPrice, r.ExitPrice, r.ExitTarget,
		r.RealizedPnL, string(r.PnLSource), int64(r.HoldingDuration.Seconds()), string(r.Reason),
	)
	return errors.Wrapf(err, "insert trade %s", r.Symbol)
}

func (p *Postgres) RecordDCA(ctx context.Context, r models.DcaRecord) error {
	_, err := p.db.Exec(ctx, insertDCA,
		r.ID, r.Timestamp, r.Symbol, string(r.Direction), r.OriginalPrice, r.DcaPrice, r.DcaSize,
		r.AveragePrice, r.NewExit, r.EntryIndex,
	)
	return errors.Wrapf(err, "insert dca %s", r.Symbol)
}
