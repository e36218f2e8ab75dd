package runner

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/metrics"
	"scalp_bot/internal/models"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/store"
)

// fakeGateway: маленькая биржа: маркет-ордера двигают позицию,
// лимитники просто получают id.
type fakeGateway struct {
	prices    map[string]models.Price
	candles   map[string][]models.Candle
	positions map[string]models.Position
	metas     []models.SymbolMeta
	realized  map[string]float64
	available float64

	sticky      map[string]bool  // позиция не закрывается
	failEntry   map[string]error // ошибка маркет-входа
	failLimit   bool
	failReduce  bool
	accountErr  error
	panicOn     map[string]bool
	positionPnL map[string]float64 // перекрывает расчёт по цене
	lostReply   map[string]bool    // первый ордер исполняется, ответ теряется
	partialFill map[string]float64 // следующий reduce-only исполняется только на столько
	failClose   bool               // ClosePosition отказывает
	cancelErr   map[string]error   // по id ордера

	orders     []models.OrderRequest
	cancels    []string
	closeCalls []string
	leverage   map[string]int
	placed     map[string]models.OrderResult // по client id
	nextID     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		prices:      make(map[string]models.Price),
		candles:     make(map[string][]models.Candle),
		positions:   make(map[string]models.Position),
		realized:    make(map[string]float64),
		sticky:      make(map[string]bool),
		failEntry:   make(map[string]error),
		panicOn:     make(map[string]bool),
		positionPnL: make(map[string]float64),
		leverage:    make(map[string]int),
		lostReply:   make(map[string]bool),
		partialFill: make(map[string]float64),
		cancelErr:   make(map[string]error),
		placed:      make(map[string]models.OrderResult),
		available:   1000,
	}
}

func (g *fakeGateway) setMid(sym string, mid float64) {
	g.prices[sym] = models.Price{Bid: mid - 0.01, Ask: mid + 0.01, Mid: mid}
}

func (g *fakeGateway) id() string {
	g.nextID++
	return strconv.Itoa(g.nextID)
}

func (g *fakeGateway) Price(_ context.Context, symbol string) (models.Price, error) {
	p, ok := g.prices[symbol]
	if !ok {
		return models.Price{}, fmt.Errorf("price %s: %w", symbol, models.ErrUnavailable)
	}
	return p, nil
}

func (g *fakeGateway) Candles(_ context.Context, symbol, _ string, _ int) ([]models.Candle, error) {
	if g.panicOn[symbol] {
		panic("broken candles for " + symbol)
	}
	c, ok := g.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("candles %s: %w", symbol, models.ErrUnavailable)
	}
	return c, nil
}

func (g *fakeGateway) OrderBook(_ context.Context, symbol string, _ int) (models.OrderBook, error) {
	p, ok := g.prices[symbol]
	if !ok {
		return models.OrderBook{}, models.ErrUnavailable
	}
	return models.OrderBook{
		Bids: []models.BookLevel{{Price: p.Bid, Size: 10}},
		Asks: []models.BookLevel{{Price: p.Ask, Size: 10}},
	}, nil
}

func (g *fakeGateway) Account(_ context.Context) (models.Account, error) {
	if g.accountErr != nil {
		return models.Account{}, g.accountErr
	}
	acc := models.Account{Equity: g.available, Available: g.available}
	for _, sym := range helper.SortedKeys(g.positions) {
		p := g.positions[sym]
		if px, ok := g.prices[sym]; ok {
			p.MarkPrice = px.Mid
			p.UnrealizedPnL = p.Direction.Sign() * (px.Mid - p.EntryPrice) * p.Size
		}
		if pnl, ok := g.positionPnL[sym]; ok {
			p.UnrealizedPnL = pnl
		}
		acc.Positions = append(acc.Positions, p)
	}
	return acc, nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	g.orders = append(g.orders, req)

	// повтор с тем же client id не ставит второй ордер
	if res, ok := g.placed[req.ClientOrderID]; ok && req.ClientOrderID != "" {
		return res, nil
	}
	if g.lostReply[req.Symbol] {
		delete(g.lostReply, req.Symbol)
		if _, err := g.execute(req); err != nil {
			return models.OrderResult{}, err
		}
		return models.OrderResult{}, fmt.Errorf("http 503 code=-1000: execution status unknown")
	}
	return g.execute(req)
}

func (g *fakeGateway) execute(req models.OrderRequest) (res models.OrderResult, err error) {
	defer func() {
		if err == nil && req.ClientOrderID != "" {
			g.placed[req.ClientOrderID] = res
		}
	}()

	if req.Type == models.OrderLimit {
		if g.failLimit {
			return models.OrderResult{}, fmt.Errorf("limit rejected")
		}
		return models.OrderResult{OrderID: "tp-" + g.id(), Status: "NEW"}, nil
	}

	mid := g.prices[req.Symbol].Mid
	res = models.OrderResult{OrderID: g.id(), Status: "FILLED", AvgPrice: mid, FilledSize: req.Size}

	if req.ReduceOnly {
		if g.failReduce {
			return models.OrderResult{}, fmt.Errorf("reduce-only rejected")
		}
		if g.sticky[req.Symbol] {
			return res, nil
		}
		p, ok := g.positions[req.Symbol]
		if !ok {
			return models.OrderResult{}, fmt.Errorf("no position: %w", models.ErrNotFound)
		}
		if req.Size > p.Size+1e-9 {
			return models.OrderResult{}, fmt.Errorf("reduce-only %.6f > position %.6f", req.Size, p.Size)
		}
		fill := req.Size
		if part, ok := g.partialFill[req.Symbol]; ok {
			delete(g.partialFill, req.Symbol)
			fill = part
			res.FilledSize = part
		}
		p.Size -= fill
		if p.Size <= 1e-9 {
			delete(g.positions, req.Symbol)
		} else {
			g.positions[req.Symbol] = p
		}
		return res, nil
	}

	if err := g.failEntry[req.Symbol]; err != nil {
		return models.OrderResult{}, err
	}
	dir := models.DirectionFromSide(req.Side)
	p, ok := g.positions[req.Symbol]
	if !ok {
		p = models.Position{Symbol: req.Symbol, Direction: dir}
	}
	p.EntryPrice = (p.EntryPrice*p.Size + mid*req.Size) / (p.Size + req.Size)
	p.Size += req.Size
	g.positions[req.Symbol] = p
	return res, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, symbol, orderID string) error {
	g.cancels = append(g.cancels, orderID)
	return g.cancelErr[orderID]
}

func (g *fakeGateway) ClosePosition(_ context.Context, symbol string) (models.OrderResult, error) {
	g.closeCalls = append(g.closeCalls, symbol)
	if g.failClose {
		return models.OrderResult{}, fmt.Errorf("close position rejected")
	}
	if !g.sticky[symbol] {
		delete(g.positions, symbol)
	}
	return models.OrderResult{OrderID: g.id(), Status: "FILLED", AvgPrice: g.prices[symbol].Mid}, nil
}

func (g *fakeGateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	g.leverage[symbol] = leverage
	return nil
}

func (g *fakeGateway) Symbols(context.Context) ([]models.SymbolMeta, error) {
	return g.metas, nil
}

func (g *fakeGateway) RealizedPnL(_ context.Context, _ string, orderID string) (float64, error) {
	pnl, ok := g.realized[orderID]
	if !ok {
		return 0, models.ErrUnavailable
	}
	return pnl, nil
}

// entryOrders: маркет-ордера без reduce-only.
func (g *fakeGateway) entryOrders() []models.OrderRequest {
	var out []models.OrderRequest
	for _, o := range g.orders {
		if o.Type == models.OrderMarket && !o.ReduceOnly {
			out = append(out, o)
		}
	}
	return out
}

type sentMsg struct {
	cat notify.Category
	msg string
}

type recNotifier struct {
	msgs []sentMsg
}

func (n *recNotifier) Send(_ context.Context, cat notify.Category, msg string) {
	n.msgs = append(n.msgs, sentMsg{cat: cat, msg: msg})
}

func (n *recNotifier) Sendf(ctx context.Context, cat notify.Category, format string, args ...any) {
	n.Send(ctx, cat, fmt.Sprintf(format, args...))
}

func (n *recNotifier) count(cat notify.Category) int {
	c := 0
	for _, m := range n.msgs {
		if m.cat == cat {
			c++
		}
	}
	return c
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Add(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	t     *testing.T
	gw    *fakeGateway
	store *store.Store
	n     *recNotifier
	clock *fakeClock
	reg   *prometheus.Registry
	r     *Runner
	st    *EngineState
}

func testSettings() models.TradingSettings {
	return models.TradingSettings{
		Symbols:             []string{"AAAUSDT", "BBBUSDT"},
		Interval:            "1m",
		CandleLimit:         100,
		Cooldown:            15 * time.Minute,
		Leverage:            10,
		MarginPerTrade:      100,
		ATRTPMult:           1.2,
		MaxTPPct:            0.02,
		FeeRate:             0.0005,
		VolatilityWindow:    10,
		VolatilityThreshold: 0.05,
		OrderBookDepth:      5,
		DustThreshold:       0.0001,
		SymbolsRefresh:      time.Hour,
		CloseSplitParts:     3,
		DCA: models.DCASettings{
			Enabled:        true,
			MaxEntries:     3,
			MinInterval:    5 * time.Minute,
			BaseMaxLossPct: 0.05,
			StepPct:        0.05,
			SizeMultiplier: 1.0,
		},
		Retry: models.RetrySettings{Attempts: 1},
	}
}

func newFixture(t *testing.T, mutate func(s *models.TradingSettings)) *fixture {
	t.Helper()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{
		t:     t,
		gw:    newFakeGateway(),
		store: s,
		n:     &recNotifier{},
		clock: &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		reg:   prometheus.NewRegistry(),
	}
	f.gw.metas = []models.SymbolMeta{
		{Symbol: "AAAUSDT", QtyPrecision: 3, StepSize: 0.001, TickSize: 0.01, PricePrecision: 2},
		{Symbol: "BBBUSDT", QtyPrecision: 3, StepSize: 0.001, TickSize: 0.01, PricePrecision: 2},
	}

	settings := testSettings()
	if mutate != nil {
		mutate(&settings)
	}
	f.r = New(Deps{
		Settings: settings,
		Profiles: models.Profiles{Default: models.DefaultProfile},
		Gateway:  f.gw,
		Store:    s,
		Notifier: f.n,
		Metrics:  metrics.New(f.reg),
		Now:      f.clock.Now,
	})
	return f
}

// load поднимает состояние из хранилища, как при старте.
func (f *fixture) load() {
	st, err := f.r.Load()
	require.NoError(f.t, err)
	f.st = st
}

func (f *fixture) cycle() {
	if f.st == nil {
		f.load()
	}
	f.r.Cycle(context.Background(), f.st)
}

// track сохраняет уровень и позицию на бирже, как после открытия.
func (f *fixture) track(lvl *models.PositionLevel, mid float64) {
	f.t.Helper()
	require.NoError(f.t, f.store.Update(func(w store.Writer) error { return w.PutLevel(lvl) }))
	f.gw.positions[lvl.Symbol] = models.Position{
		Symbol:     lvl.Symbol,
		Direction:  lvl.Direction,
		Size:       lvl.Size,
		EntryPrice: lvl.EntryPrice,
	}
	f.gw.setMid(lvl.Symbol, mid)
}

func (f *fixture) trades() []models.TradeRecord {
	f.t.Helper()
	recs, err := f.store.Trades()
	require.NoError(f.t, err)
	return recs
}

// breakoutCandles: 39 спокойных свечей и пробойная вверх.
func breakoutCandles() []models.Candle {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, 40)
	for i := 0; i < 39; i++ {
		out = append(out, models.Candle{
			Time: start.Add(time.Duration(i) * time.Minute),
			Open: 100, High: 100.2, Low: 99.8, Close: 100, Volume: 10,
		})
	}
	return append(out, models.Candle{
		Time: start.Add(39 * time.Minute),
		Open: 100, High: 101.1, Low: 100, Close: 101, Volume: 100,
	})
}

// flatCandles: сигнала нет.
func flatCandles() []models.Candle {
	c := breakoutCandles()
	c[len(c)-1] = c[0]
	return c
}
