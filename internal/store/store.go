// Package store: состояние движка в Pebble: уровни позиций, TP-цели,
// история сделок и усреднений. Связанные изменения пишутся одним батчем.
package store

import (
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"scalp_bot/internal/models"
	"scalp_bot/pkg/id"
)

// keys: lvl:<symbol>, tp:<symbol>, trade:<ulid>, dca:<ulid>
var (
	prefixLevel  = []byte("lvl:")
	prefixTarget = []byte("tp:")
	prefixTrade  = []byte("trade:")
	prefixDCA    = []byte("dca:")
)

func key(prefix []byte, s string) []byte {
	out := make([]byte, 0, len(prefix)+len(s))
	out = append(out, prefix...)
	return append(out, s...)
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Writer: операции внутри одного атомарного обновления.
type Writer interface {
	PutLevel(l *models.PositionLevel) error
	DeleteLevel(symbol string) error
	PutTarget(t *models.ExitTarget) error
	DeleteTarget(symbol string) error
	AppendTrade(r *models.TradeRecord) error
	AppendDCA(r *models.DcaRecord) error
}

// Snapshot: то, что нужно движку при старте.
type Snapshot struct {
	Levels  map[string]*models.PositionLevel
	Targets map[string]*models.ExitTarget
}

type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble %s", path)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly: для CLI, пока бот не запущен.
func OpenReadOnly(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble %s read-only", path)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Update применяет fn к батчу и коммитит его с fsync. Ошибка из fn
// отменяет всё.
func (s *Store) Update(fn func(w Writer) error) error {
	b := s.db.NewBatch()
	defer b.Close()

	if err := fn(&batchWriter{b: b}); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	return nil
}

func (s *Store) Load() (Snapshot, error) {
	snap := Snapshot{
		Levels:  make(map[string]*models.PositionLevel),
		Targets: make(map[string]*models.ExitTarget),
	}

	err := scan(s.db, prefixLevel, func(k string, v []byte) error {
		var l models.PositionLevel
		if err := sonic.Unmarshal(v, &l); err != nil {
			return errors.Wrapf(err, "decode level %s", k)
		}
		if l.Symbol == "" {
			l.Symbol = k
		}
		snap.Levels[l.Symbol] = &l
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = scan(s.db, prefixTarget, func(k string, v []byte) error {
		var t models.ExitTarget
		if err := sonic.Unmarshal(v, &t); err != nil {
			return errors.Wrapf(err, "decode target %s", k)
		}
		if t.Symbol == "" {
			t.Symbol = k
		}
		snap.Targets[t.Symbol] = &t
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Trades: история сделок в порядке записи.
func (s *Store) Trades() ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	err := scan(s.db, prefixTrade, func(k string, v []byte) error {
		var r models.TradeRecord
		if err := sonic.Unmarshal(v, &r); err != nil {
			return errors.Wrapf(err, "decode trade %s", k)
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *Store) DCAHistory() ([]models.DcaRecord, error) {
	var out []models.DcaRecord
	err := scan(s.db, prefixDCA, func(k string, v []byte) error {
		var r models.DcaRecord
		if err := sonic.Unmarshal(v, &r); err != nil {
			return errors.Wrapf(err, "decode dca %s", k)
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func scan(db *pebble.DB, prefix []byte, fn func(k string, v []byte) error) error {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key()[len(prefix):])
		if err := fn(k, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

type batchWriter struct {
	b *pebble.Batch
}

func (w *batchWriter) put(k []byte, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", k)
	}
	return w.b.Set(k, data, nil)
}

func (w *batchWriter) PutLevel(l *models.PositionLevel) error {
	return w.put(key(prefixLevel, l.Symbol), l)
}

func (w *batchWriter) DeleteLevel(symbol string) error {
	return w.b.Delete(key(prefixLevel, symbol), nil)
}

func (w *batchWriter) PutTarget(t *models.ExitTarget) error {
	return w.put(key(prefixTarget, t.Symbol), t)
}

func (w *batchWriter) DeleteTarget(symbol string) error {
	return w.b.Delete(key(prefixTarget, symbol), nil)
}

func (w *batchWriter) AppendTrade(r *models.TradeRecord) error {
	if r.ID == "" {
		r.ID = id.NewAt(r.Timestamp)
	}
	return w.put(key(prefixTrade, r.ID), r)
}

func (w *batchWriter) AppendDCA(r *models.DcaRecord) error {
	if r.ID == "" {
		r.ID = id.NewAt(r.Timestamp)
	}
	return w.put(key(prefixDCA, r.ID), r)
}
