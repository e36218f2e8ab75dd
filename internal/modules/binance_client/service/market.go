package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/models"
)

func (c *Client) Price(ctx context.Context, symbol string) (models.Price, error) {
	var r bookTickerResponse
	if err := c.do(ctx, "GET", "/fapi/v1/ticker/bookTicker", url.Values{"symbol": {symbol}}, false, &r); err != nil {
		return models.Price{}, fmt.Errorf("Price %s: %w", symbol, err)
	}
	bid, err := positive("bidPrice", r.BidPrice)
	if err != nil {
		return models.Price{}, fmt.Errorf("Price %s: %w", symbol, err)
	}
	ask, err := positive("askPrice", r.AskPrice)
	if err != nil {
		return models.Price{}, fmt.Errorf("Price %s: %w", symbol, err)
	}
	return models.Price{Bid: bid, Ask: ask, Mid: (bid + ask) / 2}, nil
}

func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {helper.NormTF(interval)},
		"limit":    {strconv.Itoa(limit)},
	}
	var rows [][]any
	if err := c.do(ctx, "GET", "/fapi/v1/klines", params, false, &rows); err != nil {
		return nil, fmt.Errorf("Candles %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("Candles %s: empty: %w", symbol, models.ErrUnavailable)
	}

	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("Candles %s row %d: %w", symbol, i, err)
		}
		out = append(out, k)
	}
	return out, nil
}

// kline: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []any) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short kline: %w", models.ErrUnavailable)
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("kline open time %v: %w", row[0], models.ErrUnavailable)
	}

	fields := [5]float64{}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range fields {
		s, ok := row[i+1].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("kline %s %v: %w", names[i], row[i+1], models.ErrUnavailable)
		}
		v, err := num(names[i], s)
		if err != nil {
			return models.Candle{}, err
		}
		fields[i] = v
	}

	return models.Candle{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (models.OrderBook, error) {
	// Binance принимает только 5/10/20/50/100/500/1000
	limit := 5
	for _, l := range []int{5, 10, 20, 50, 100, 500, 1000} {
		if depth <= l {
			limit = l
			break
		}
	}

	var r depthResponse
	params := url.Values{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}}
	if err := c.do(ctx, "GET", "/fapi/v1/depth", params, false, &r); err != nil {
		return models.OrderBook{}, fmt.Errorf("OrderBook %s: %w", symbol, err)
	}

	bids, err := parseLevels("bid", r.Bids)
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("OrderBook %s: %w", symbol, err)
	}
	asks, err := parseLevels("ask", r.Asks)
	if err != nil {
		return models.OrderBook{}, fmt.Errorf("OrderBook %s: %w", symbol, err)
	}
	if len(bids) == 0 || len(asks) == 0 {
		return models.OrderBook{}, fmt.Errorf("OrderBook %s: empty side: %w", symbol, models.ErrUnavailable)
	}
	return models.OrderBook{Bids: bids, Asks: asks}, nil
}

func parseLevels(side string, raw [][]string) ([]models.BookLevel, error) {
	out := make([]models.BookLevel, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%s level %v: %w", side, lv, models.ErrUnavailable)
		}
		px, err := positive(side+" price", lv[0])
		if err != nil {
			return nil, err
		}
		sz, err := num(side+" size", lv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, models.BookLevel{Price: px, Size: sz})
	}
	return out, nil
}

// Symbols: торгуемые бессрочные USDT-контракты. Заодно обновляет кеш
// параметров для форматирования ордеров.
func (c *Client) Symbols(ctx context.Context) ([]models.SymbolMeta, error) {
	var r exchangeInfoResponse
	if err := c.do(ctx, "GET", "/fapi/v1/exchangeInfo", nil, false, &r); err != nil {
		return nil, fmt.Errorf("Symbols: %w", err)
	}

	out := make([]models.SymbolMeta, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		m := models.SymbolMeta{
			Symbol:         s.Symbol,
			QtyPrecision:   s.QuantityPrecision,
			PricePrecision: s.PricePrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				m.TickSize, _ = num("tickSize", f.TickSize)
			case "LOT_SIZE":
				m.StepSize, _ = num("stepSize", f.StepSize)
				m.MinQty, _ = num("minQty", f.MinQty)
			}
		}
		if m.StepSize > 0 {
			m.QtyPrecision = precisionFromStep(m.StepSize)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("Symbols: no tradable contracts: %w", models.ErrUnavailable)
	}

	c.cacheMeta(out)
	return out, nil
}
