package storage

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/journal"
	"scalp_bot/internal/modules/config"
	"scalp_bot/internal/store"
	"scalp_bot/pkg/db"
)

func openStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	log.Info("state store opened", zap.String("path", cfg.Storage.Path))
	lc.Append(fx.StopHook(s.Close))
	return s, nil
}

// newJournal: CSV всегда, Postgres если настроен.
func newJournal(ctx context.Context, cfg *config.Config, pg *db.Pool, log *zap.Logger) (journal.Recorder, error) {
	recs := journal.Multi{
		journal.NewCSV(filepath.Clean(cfg.Storage.TradesCSV), filepath.Clean(cfg.Storage.DCACSV)),
	}
	if pg != nil {
		p := journal.NewPostgres(pg)
		if err := p.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		recs = append(recs, p)
		log.Info("postgres journal enabled")
	}
	return recs, nil
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			openStore,
			newJournal,
		),
	)
}
