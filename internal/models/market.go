package models

import "time"

type Price struct {
	Bid float64
	Ask float64
	Mid float64
}

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type BookLevel struct {
	Price float64
	Size  float64
}

type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// SpreadPct: (ask-bid)/mid по лучшим уровням; ok=false, если стакан пустой.
func (b OrderBook) SpreadPct() (float64, bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, false
	}
	bid, ask := b.Bids[0].Price, b.Asks[0].Price
	if bid <= 0 || ask <= 0 {
		return 0, false
	}
	mid := (bid + ask) / 2
	return (ask - bid) / mid, true
}

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Size       float64
	Price      float64 // только для LIMIT
	ReduceOnly bool
	// ClientOrderID один на логический ордер, общий для всех повторов.
	ClientOrderID string
}

type OrderResult struct {
	OrderID    string
	Status     string
	AvgPrice   float64
	FilledSize float64
}

// Filled: рыночный ордер считается исполненным, если биржа так сказала
// или отдала ненулевой объём.
func (r OrderResult) Filled() bool {
	switch r.Status {
	case "FILLED", "PARTIALLY_FILLED":
		return true
	}
	return r.FilledSize > 0
}

// SymbolMeta: торговые параметры инструмента.
type SymbolMeta struct {
	Symbol         string
	QtyPrecision   int
	PricePrecision int
	TickSize       float64
	StepSize       float64
	MinQty         float64
}
