package service

import (
	"fmt"
	"math"
	"strconv"

	"scalp_bot/internal/models"
)

type bookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

type depthResponse struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type accountResponse struct {
	TotalMarginBalance string `json:"totalMarginBalance"`
	AvailableBalance   string `json:"availableBalance"`
	Positions          []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		UnrealizedProfit string `json:"unrealizedProfit"`
		Notional         string `json:"notional"`
		PositionSide     string `json:"positionSide"`
	} `json:"positions"`
}

type positionRiskResponse struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	Status      string `json:"status"`
	AvgPrice    string `json:"avgPrice"`
	ExecutedQty string `json:"executedQty"`
}

func (r orderResponse) result() models.OrderResult {
	res := models.OrderResult{
		OrderID: strconv.FormatInt(r.OrderID, 10),
		Status:  r.Status,
	}
	res.AvgPrice, _ = num("avgPrice", r.AvgPrice)
	res.FilledSize, _ = num("executedQty", r.ExecutedQty)
	return res
}

type userTrade struct {
	OrderID     int64  `json:"orderId"`
	RealizedPnl string `json:"realizedPnl"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		ContractType      string `json:"contractType"`
		QuoteAsset        string `json:"quoteAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
		} `json:"filters"`
	} `json:"symbols"`
}

// num: строковое число из ответа биржи; битое значение => ErrUnavailable.
func num(name, s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s empty: %w", name, models.ErrUnavailable)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s parse %q: %w", name, s, models.ErrUnavailable)
	}
	return v, nil
}

func positive(name, s string) (float64, error) {
	v, err := num(name, s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s <= 0 (%q): %w", name, s, models.ErrUnavailable)
	}
	return v, nil
}

// precisionFromStep: "0.001" -> 3, "1" -> 0.
func precisionFromStep(step float64) int {
	if step <= 0 || step >= 1 {
		return 0
	}
	return int(math.Round(-math.Log10(step)))
}
