package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalp_bot/internal/models"
	"scalp_bot/internal/store"
)

func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)

	opened := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Update(func(w store.Writer) error {
		if err := w.PutLevel(&models.PositionLevel{
			Symbol: "ETHUSDT", Direction: models.Long, EntryPrice: 2500, Size: 0.4, ExitPrice: 2530, OpenedAt: opened,
		}); err != nil {
			return err
		}
		if err := w.PutTarget(&models.ExitTarget{Symbol: "ETHUSDT", Price: 2530, Size: 0.4, OrderID: "777", CreatedAt: opened}); err != nil {
			return err
		}
		return w.AppendTrade(&models.TradeRecord{
			Timestamp: opened.Add(-time.Hour), Symbol: "BTCUSDT", Direction: models.Short,
			EntryPrice: 50000, ExitPrice: 49500, RealizedPnL: 10, Reason: models.ReasonTakeProfit,
			PnLSource: models.PnLRealized,
		})
	}))
	require.NoError(t, s.Close())
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStateCommand(t *testing.T) {
	dir := seedStore(t)

	out, err := run(t, "--store", dir, "state")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "SYMBOL"))
	assert.Contains(t, lines[1], "ETHUSDT")
	assert.Contains(t, lines[1], "777")
	assert.Contains(t, lines[1], "2026-03-02T10:00:00Z")
}

func TestTradesCommand(t *testing.T) {
	dir := seedStore(t)

	out, err := run(t, "--store", dir, "trades")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,symbol"))
	assert.Contains(t, lines[1], "BTCUSDT")
	assert.Contains(t, lines[1], "tp_alcanzado")
}

func TestDCACommandEmpty(t *testing.T) {
	dir := seedStore(t)

	out, err := run(t, "--store", dir, "dca")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestMissingStore(t *testing.T) {
	_, err := run(t, "--store", t.TempDir()+"/nope", "state")
	assert.Error(t, err)
}
