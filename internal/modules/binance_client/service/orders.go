package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/models"
)

// CreateOrder ставит ордер с client id из запроса. Повтор с тем же id после
// потерянного ответа биржа отклоняет как дубль: тогда отдаём уже
// существующий ордер, второй не ставится.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if req.Size <= 0 {
		return models.OrderResult{}, fmt.Errorf("CreateOrder %s: size <= 0", req.Symbol)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	meta, hasMeta := c.metaFor(ctx, req.Symbol)

	params := url.Values{
		"symbol":           {req.Symbol},
		"side":             {string(req.Side)},
		"type":             {string(req.Type)},
		"quantity":         {formatQty(req.Size, meta, hasMeta)},
		"newClientOrderId": {clientID},
		"newOrderRespType": {"RESULT"},
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.Type == models.OrderLimit {
		if req.Price <= 0 {
			return models.OrderResult{}, fmt.Errorf("CreateOrder %s: limit price <= 0", req.Symbol)
		}
		params.Set("price", formatPrice(req.Price, meta, hasMeta))
		params.Set("timeInForce", "GTC")
	}

	res, err := c.placeOrder(ctx, params)
	if errors.Is(err, errDuplicateOrder) {
		c.log.Warn("duplicate client order id, fetching placed order",
			zap.String("symbol", req.Symbol), zap.String("client_id", clientID))
		return c.orderByClientID(ctx, req.Symbol, clientID)
	}
	return res, err
}

func (c *Client) orderByClientID(ctx context.Context, symbol, clientID string) (models.OrderResult, error) {
	var r orderResponse
	params := url.Values{"symbol": {symbol}, "origClientOrderId": {clientID}}
	if err := c.do(ctx, "GET", "/fapi/v1/order", params, true, &r); err != nil {
		return models.OrderResult{}, fmt.Errorf("QueryOrder %s/%s: %w", symbol, clientID, err)
	}
	return r.result(), nil
}

func (c *Client) placeOrder(ctx context.Context, params url.Values) (models.OrderResult, error) {
	var r orderResponse
	if err := c.do(ctx, "POST", "/fapi/v1/order", params, true, &r); err != nil {
		return models.OrderResult{}, fmt.Errorf("CreateOrder %s: %w", params.Get("symbol"), err)
	}

	return r.result(), nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	if err := c.do(ctx, "DELETE", "/fapi/v1/order", params, true, nil); err != nil {
		return fmt.Errorf("CancelOrder %s/%s: %w", symbol, orderID, err)
	}
	return nil
}

// ClosePosition: запасной способ закрытия: берёт размер прямо с биржи и
// отправляет reduce-only market на весь объём в том виде, в котором его
// вернула биржа.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (models.OrderResult, error) {
	var risks []positionRiskResponse
	if err := c.do(ctx, "GET", "/fapi/v2/positionRisk", url.Values{"symbol": {symbol}}, true, &risks); err != nil {
		return models.OrderResult{}, fmt.Errorf("ClosePosition %s: %w", symbol, err)
	}

	var amtRaw string
	for _, r := range risks {
		if r.Symbol != symbol {
			continue
		}
		if v, err := num("positionAmt", r.PositionAmt); err == nil && v != 0 {
			amtRaw = r.PositionAmt
			break
		}
	}
	if amtRaw == "" {
		return models.OrderResult{Status: "FILLED"}, nil
	}

	side := models.SideSell
	if strings.HasPrefix(amtRaw, "-") {
		side = models.SideBuy
	}

	params := url.Values{
		"symbol":           {symbol},
		"side":             {string(side)},
		"type":             {string(models.OrderMarket)},
		"quantity":         {strings.TrimPrefix(amtRaw, "-")},
		"reduceOnly":       {"true"},
		"newClientOrderId": {uuid.NewString()},
		"newOrderRespType": {"RESULT"},
	}
	return c.placeOrder(ctx, params)
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{"symbol": {symbol}, "leverage": {strconv.Itoa(leverage)}}
	if err := c.do(ctx, "POST", "/fapi/v1/leverage", params, true, nil); err != nil {
		return fmt.Errorf("SetLeverage %s x%d: %w", symbol, leverage, err)
	}
	return nil
}

func formatQty(qty float64, meta models.SymbolMeta, ok bool) string {
	if !ok {
		return strconv.FormatFloat(qty, 'f', -1, 64)
	}
	if meta.StepSize > 0 {
		qty = helper.RoundDownToTick(qty, meta.StepSize)
	}
	return helper.FormatQty(qty, meta.QtyPrecision)
}

func formatPrice(px float64, meta models.SymbolMeta, ok bool) string {
	if !ok {
		return strconv.FormatFloat(px, 'f', -1, 64)
	}
	return helper.FormatPrice(px, meta.TickSize, meta.PricePrecision)
}
