package journal

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"scalp_bot/internal/models"
)

var (
	TradeHeader = []string{
		"timestamp", "symbol", "direction", "entry_price", "exit_price", "exit_target",
		"realized_pnl", "holding_duration", "close_reason", "pnl_source",
	}
	DCAHeader = []string{
		"timestamp", "symbol", "direction", "original_price", "dca_price", "dca_size",
		"average_price", "new_exit", "entry_index",
	}
)

// CSV дописывает строки в два файла, заголовок пишется в пустой файл.
type CSV struct {
	mu        sync.Mutex
	tradePath string
	dcaPath   string
}

func NewCSV(tradePath, dcaPath string) *CSV {
	return &CSV{tradePath: tradePath, dcaPath: dcaPath}
}

func (c *CSV) RecordTrade(_ context.Context, r models.TradeRecord) error {
	if c.tradePath == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return appendRow(c.tradePath, TradeHeader, TradeRow(r))
}

func (c *CSV) RecordDCA(_ context.Context, r models.DcaRecord) error {
	if c.dcaPath == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return appendRow(c.dcaPath, DCAHeader, DCARow(r))
}

func TradeRow(r models.TradeRecord) []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Symbol,
		string(r.Direction),
		ff(r.EntryPrice),
		ff(r.ExitPrice),
		ff(r.ExitTarget),
		ff(r.RealizedPnL),
		strconv.FormatInt(int64(r.HoldingDuration.Seconds()), 10),
		string(r.Reason),
		string(r.PnLSource),
	}
}

func DCARow(r models.DcaRecord) []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Symbol,
		string(r.Direction),
		ff(r.OriginalPrice),
		ff(r.DcaPrice),
		ff(r.DcaSize),
		ff(r.AveragePrice),
		ff(r.NewExit),
		strconv.Itoa(r.EntryIndex),
	}
}

// WriteTrades: полный экспорт истории (для CLI).
func WriteTrades(w io.Writer, recs []models.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeHeader); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(TradeRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteDCA(w io.Writer, recs []models.DcaRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DCAHeader); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(DCARow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendRow(path string, header, row []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}

	cw := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := cw.Write(header); err != nil {
			return errors.Wrap(err, "write header")
		}
	}
	if err := cw.Write(row); err != nil {
		return errors.Wrap(err, "write row")
	}
	cw.Flush()
	return errors.Wrapf(cw.Error(), "flush %s", path)
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
