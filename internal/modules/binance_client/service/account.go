package service

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"scalp_bot/internal/models"
)

// Account: баланс и все ненулевые позиции. Если хоть одна позиция не
// разобралась, возвращается ошибка: неполный снимок опаснее отсутствующего.
func (c *Client) Account(ctx context.Context) (models.Account, error) {
	var r accountResponse
	if err := c.do(ctx, "GET", "/fapi/v2/account", nil, true, &r); err != nil {
		return models.Account{}, fmt.Errorf("Account: %w", err)
	}

	equity, err := num("totalMarginBalance", r.TotalMarginBalance)
	if err != nil {
		return models.Account{}, fmt.Errorf("Account: %w", err)
	}
	avail, err := num("availableBalance", r.AvailableBalance)
	if err != nil {
		return models.Account{}, fmt.Errorf("Account: %w", err)
	}

	acc := models.Account{Equity: equity, Available: avail}
	for _, p := range r.Positions {
		amt, err := num("positionAmt", p.PositionAmt)
		if err != nil {
			return models.Account{}, fmt.Errorf("Account %s: %w", p.Symbol, err)
		}
		if amt == 0 {
			continue
		}
		entry, err := num("entryPrice", p.EntryPrice)
		if err != nil {
			return models.Account{}, fmt.Errorf("Account %s: %w", p.Symbol, err)
		}
		upl, err := num("unrealizedProfit", p.UnrealizedProfit)
		if err != nil {
			return models.Account{}, fmt.Errorf("Account %s: %w", p.Symbol, err)
		}

		dir := models.Long
		if amt < 0 {
			dir = models.Short
		}
		// в hedge-режиме биржа сама говорит сторону; расхождение со знаком: в лог
		if p.PositionSide != "" && p.PositionSide != "BOTH" {
			if side, ok := models.ParseDirection(p.PositionSide); !ok || side != dir {
				c.log.Warn("position side mismatch",
					zap.String("symbol", p.Symbol),
					zap.String("positionSide", p.PositionSide),
					zap.Float64("amt", amt),
				)
			}
		}

		pos := models.Position{
			Symbol:        p.Symbol,
			Direction:     dir,
			Size:          math.Abs(amt),
			EntryPrice:    entry,
			UnrealizedPnL: upl,
		}
		if notional, err := num("notional", p.Notional); err == nil && amt != 0 {
			pos.MarkPrice = math.Abs(notional / amt)
		}
		acc.Positions = append(acc.Positions, pos)
	}
	return acc, nil
}

// RealizedPnL: сумма realizedPnl по сделкам ордера.
func (c *Client) RealizedPnL(ctx context.Context, symbol, orderID string) (float64, error) {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	var trades []userTrade
	if err := c.do(ctx, "GET", "/fapi/v1/userTrades", params, true, &trades); err != nil {
		return 0, fmt.Errorf("RealizedPnL %s/%s: %w", symbol, orderID, err)
	}
	if len(trades) == 0 {
		return 0, fmt.Errorf("RealizedPnL %s/%s: no fills: %w", symbol, orderID, models.ErrUnavailable)
	}

	want, _ := strconv.ParseInt(orderID, 10, 64)
	total := 0.0
	for _, t := range trades {
		if want != 0 && t.OrderID != want {
			continue
		}
		v, err := num("realizedPnl", t.RealizedPnl)
		if err != nil {
			return 0, fmt.Errorf("RealizedPnL %s/%s: %w", symbol, orderID, err)
		}
		total += v
	}
	return total, nil
}
