package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	DSN            string
	MaxConns       int32         // 0: по умолчанию pgx
	ConnectTimeout time.Duration // на открытие пула и ping
}

// Pool: пул соединений к Postgres. Писатель один (журнал движка),
// поэтому соединений много не нужно.
type Pool struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open создаёт пул и сразу проверяет соединение.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{pool: pool, log: log}, nil
}

func (p *Pool) Close() {
	p.pool.Close()
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// InTx выполняет fn в транзакции READ COMMITTED. Ошибка или паника в fn
// откатывают транзакцию, паника пробрасывается дальше.
func (p *Pool) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic in tx, rolling back", zap.Any("panic", r))
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				p.log.Warn("rollback failed", zap.Error(rerr))
			}
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = errors.Wrap(cerr, "commit tx")
		}
	}()

	return fn(ctx, tx)
}
