package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/pkg/retry"
)

const exchangeInfoJSON = `{"symbols":[
 {"symbol":"BTCUSDT","status":"TRADING","contractType":"PERPETUAL","quoteAsset":"USDT","pricePrecision":2,"quantityPrecision":3,
  "filters":[{"filterType":"PRICE_FILTER","tickSize":"0.10"},{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001"}]},
 {"symbol":"OLDUSDT","status":"SETTLING","contractType":"PERPETUAL","quoteAsset":"USDT","pricePrecision":2,"quantityPrecision":0,"filters":[]}
]}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key", APISecret: "secret", Timeout: 5 * time.Second}, zap.NewNop())
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestPrice(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/bookTicker", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","bidPrice":"49999.0","askPrice":"50001.0"}`))
	})

	p, err := c.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50000, p.Mid, 1e-9)
}

func TestPriceFailsClosed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","bidPrice":"","askPrice":"50001.0"}`))
	})

	_, err := c.Price(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestCandles(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1700000000000,"100.0","101.0","99.0","100.5","12.5",1700000059999,"0",10,"0","0","0"],
			[1700000060000,"100.5","102.0","100.0","101.5","30",1700000119999,"0",10,"0","0","0"]
		]`))
	})

	candles, err := c.Candles(context.Background(), "ETHUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 101.5, candles[1].Close, 1e-9)
	assert.InDelta(t, 12.5, candles[0].Volume, 1e-9)
	assert.Equal(t, int64(1700000060000), candles[1].Time.UnixMilli())
}

func TestCandlesRejectsBrokenRow(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1700000000000,"100.0","abc","99.0","100.5","12.5"]]`))
	})

	_, err := c.Candles(context.Background(), "ETHUSDT", "1m", 1)
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestOrderBook(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"bids":[["99.9","3"]],"asks":[["100.1","2"]]}`))
	})

	book, err := c.OrderBook(context.Background(), "SOLUSDT", 5)
	require.NoError(t, err)
	spread, ok := book.SpreadPct()
	require.True(t, ok)
	assert.InDelta(t, 0.002, spread, 1e-9)
}

func TestAccount(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		_, _ = w.Write([]byte(`{"totalMarginBalance":"1000.5","availableBalance":"800","positions":[
			{"symbol":"BTCUSDT","positionAmt":"0.010","entryPrice":"50000","unrealizedProfit":"5","notional":"505","positionSide":"BOTH"},
			{"symbol":"ETHUSDT","positionAmt":"-2","entryPrice":"3000","unrealizedProfit":"-12","notional":"-6012","positionSide":"BOTH"},
			{"symbol":"XRPUSDT","positionAmt":"0","entryPrice":"0","unrealizedProfit":"0","notional":"0","positionSide":"BOTH"}
		]}`))
	})

	acc, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 800, acc.Available, 1e-9)
	require.Len(t, acc.Positions, 2)

	btc, eth := acc.Positions[0], acc.Positions[1]
	assert.Equal(t, models.Long, btc.Direction)
	assert.InDelta(t, 50500, btc.MarkPrice, 1e-6)
	assert.Equal(t, models.Short, eth.Direction)
	assert.InDelta(t, 2, eth.Size, 1e-9)
	assert.InDelta(t, -12, eth.UnrealizedPnL, 1e-9)
}

func TestAccountFailsClosedOnBrokenPosition(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalMarginBalance":"1000","availableBalance":"800","positions":[
			{"symbol":"BTCUSDT","positionAmt":"n/a","entryPrice":"50000","unrealizedProfit":"5"}
		]}`))
	})

	_, err := c.Account(context.Background())
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestCreateOrderSignsAndFormats(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoJSON))
		case "/fapi/v1/order":
			assert.Equal(t, http.MethodPost, r.Method)

			raw := r.URL.RawQuery
			i := strings.LastIndex(raw, "&signature=")
			assert.Positive(t, i)
			mac := hmac.New(sha256.New, []byte("secret"))
			mac.Write([]byte(raw[:i]))
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), raw[i+len("&signature="):])

			q := r.URL.Query()
			assert.Equal(t, "SELL", q.Get("side"))
			assert.Equal(t, "LIMIT", q.Get("type"))
			assert.Equal(t, "0.012", q.Get("quantity"))
			assert.Equal(t, "50600.1", q.Get("price"))
			assert.Equal(t, "true", q.Get("reduceOnly"))
			assert.Equal(t, "GTC", q.Get("timeInForce"))
			assert.Equal(t, "1700000000000", q.Get("timestamp"))
			_, _ = w.Write([]byte(`{"orderId":987654,"status":"NEW","avgPrice":"0.00","executedQty":"0"}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.CreateOrder(context.Background(), models.OrderRequest{
		Symbol: "BTCUSDT", Side: models.SideSell, Type: models.OrderLimit,
		Size: 0.0129, Price: 50600.12, ReduceOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "987654", res.OrderID)
	assert.False(t, res.Filled())
}

func TestCreateOrderRetryKeepsClientOrderID(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ids []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoJSON))
		case "/fapi/v1/order":
			mu.Lock()
			ids = append(ids, r.URL.Query().Get("newClientOrderId"))
			first := len(ids) == 1
			mu.Unlock()
			if first {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"code":-1000,"msg":"Unknown error, execution status unknown"}`))
				return
			}
			_, _ = w.Write([]byte(`{"orderId":11,"status":"FILLED","avgPrice":"50000","executedQty":"0.010"}`))
		default:
			http.NotFound(w, r)
		}
	})

	req := models.OrderRequest{
		Symbol: "BTCUSDT", Side: models.SideBuy, Type: models.OrderMarket,
		Size: 0.01, ClientOrderID: "sb-entry-1",
	}
	p := retry.New(3, 0, zap.NewNop())
	res, err := retry.Call(context.Background(), p, "entry", retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
		return c.CreateOrder(ctx, req)
	})
	require.NoError(t, err)
	assert.Equal(t, "11", res.OrderID)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"sb-entry-1", "sb-entry-1"}, ids)
}

func TestCreateOrderDuplicateReturnsPlacedOrder(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoJSON))
		case r.URL.Path == "/fapi/v1/order" && r.Method == http.MethodPost:
			posts.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-4116,"msg":"ClientOrderId is duplicated."}`))
		case r.URL.Path == "/fapi/v1/order" && r.Method == http.MethodGet:
			assert.Equal(t, "sb-dca-7", r.URL.Query().Get("origClientOrderId"))
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(`{"orderId":42,"status":"FILLED","avgPrice":"49900.5","executedQty":"0.020"}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.CreateOrder(context.Background(), models.OrderRequest{
		Symbol: "BTCUSDT", Side: models.SideBuy, Type: models.OrderMarket,
		Size: 0.02, ClientOrderID: "sb-dca-7",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), posts.Load())
	assert.Equal(t, "42", res.OrderID)
	assert.True(t, res.Filled())
	assert.InDelta(t, 0.02, res.FilledSize, 1e-12)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
		notFound  bool
	}{
		{name: "margin", status: 400, body: `{"code":-2019,"msg":"Margin is insufficient."}`, permanent: true},
		{name: "unknown order", status: 400, body: `{"code":-2011,"msg":"Unknown order sent."}`, permanent: false, notFound: true},
		{name: "timestamp", status: 400, body: `{"code":-1021,"msg":"Timestamp outside recvWindow"}`},
		{name: "bad gateway", status: 502, body: `oops`},
		{name: "rate limit", status: 429, body: `{"code":-1003,"msg":"Too many requests"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.CancelOrder(context.Background(), "BTCUSDT", "1")
			require.Error(t, err)
			assert.Equal(t, tt.permanent, retry.IsPermanent(err))
			assert.Equal(t, tt.notFound, errors.Is(err, models.ErrNotFound))
		})
	}
}

func TestClosePositionUsesExchangeSize(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v2/positionRisk":
			_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","positionAmt":"-1.234"}]`))
		case "/fapi/v1/order":
			q := r.URL.Query()
			assert.Equal(t, "BUY", q.Get("side"))
			assert.Equal(t, "1.234", q.Get("quantity"))
			assert.Equal(t, "MARKET", q.Get("type"))
			_, _ = w.Write([]byte(`{"orderId":5,"status":"FILLED","avgPrice":"2990.5","executedQty":"1.234"}`))
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.ClosePosition(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.InDelta(t, 2990.5, res.AvgPrice, 1e-9)
}

func TestRealizedPnL(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"orderId":77,"realizedPnl":"1.5"},{"orderId":77,"realizedPnl":"0.25"},{"orderId":78,"realizedPnl":"9"}]`))
	})

	pnl, err := c.RealizedPnL(context.Background(), "BTCUSDT", "77")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, pnl, 1e-9)
}

func TestSymbolsFiltersTradable(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exchangeInfoJSON))
	})

	metas, err := c.Symbols(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "BTCUSDT", metas[0].Symbol)
	assert.Equal(t, 3, metas[0].QtyPrecision)
	assert.InDelta(t, 0.1, metas[0].TickSize, 1e-12)
}
