package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/pkg/retry"
)

const defaultBaseURL = "https://fapi.binance.com"

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	RecvWindow int64
	Timeout    time.Duration
}

// Client: REST Binance USDT-M futures. Никаких повторов внутри: этим
// занимается retry.Policy в движке. Ошибки бизнес-отказа помечены
// retry.Permanent, отсутствующие ордера: models.ErrNotFound.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	recvWindow int64
	http       *http.Client
	log        *zap.Logger
	now        func() time.Time

	mu   sync.RWMutex
	meta map[string]models.SymbolMeta
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		secret:     cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        log,
		now:        time.Now,
		meta:       make(map[string]models.SymbolMeta),
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// errDuplicateOrder: ордер с таким newClientOrderId уже есть на бирже.
var errDuplicateOrder = errors.New("duplicate client order id")

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		}
		query = params.Encode()
		query += "&signature=" + c.sign(query)
	}

	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("%s %s new request: %w", method, path, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s do: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s read: %w", method, path, err)
	}

	if resp.StatusCode/100 != 2 {
		var ae apiError
		_ = sonic.Unmarshal(body, &ae)
		return classify(method+" "+path, resp.StatusCode, ae, body)
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s decode: %w: %w", method, path, models.ErrUnavailable, err)
	}
	return nil
}

// classify раскладывает ответ биржи на повторяемые и неповторяемые ошибки.
func classify(op string, status int, ae apiError, raw []byte) error {
	base := fmt.Errorf("%s: http %d code=%d msg=%s", op, status, ae.Code, ae.Msg)
	if ae.Code == 0 && ae.Msg == "" {
		base = fmt.Errorf("%s: http %d: %s", op, status, string(raw))
	}

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot || status >= 500:
		return base
	}

	switch ae.Code {
	case -2011, -2013:
		return fmt.Errorf("%w: %w", models.ErrNotFound, base)
	case -4116:
		return retry.Permanent(fmt.Errorf("%w: %w", errDuplicateOrder, base))
	case -1000, -1001, -1003, -1007, -1021:
		// внутренняя ошибка, таймаут, лимиты, рассинхрон времени
		return base
	}
	return retry.Permanent(base)
}

func (c *Client) cacheMeta(metas []models.SymbolMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range metas {
		c.meta[m.Symbol] = m
	}
}

func (c *Client) metaFor(ctx context.Context, symbol string) (models.SymbolMeta, bool) {
	c.mu.RLock()
	m, ok := c.meta[symbol]
	c.mu.RUnlock()
	if ok {
		return m, true
	}
	if _, err := c.Symbols(ctx); err != nil {
		c.log.Warn("exchange info unavailable", zap.String("symbol", symbol), zap.Error(err))
		return models.SymbolMeta{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok = c.meta[symbol]
	return m, ok
}
