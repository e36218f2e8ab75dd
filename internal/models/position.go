package models

import "time"

// Position: нормализованная позиция, как её видит биржа.
// Size всегда положительный, знак вынесен в Direction.
type Position struct {
	Symbol        string
	Direction     Direction
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
}

// LossPct: нереализованный результат в долях от номинала входа
// (-0.05 => -5%). Если биржа не дала PnL, считаем по цене.
func (p Position) LossPct(mid float64) float64 {
	notional := p.EntryPrice * p.Size
	if notional > 0 && p.UnrealizedPnL != 0 {
		return p.UnrealizedPnL / notional
	}
	if p.EntryPrice <= 0 || mid <= 0 {
		return 0
	}
	return p.Direction.Sign() * (mid - p.EntryPrice) / p.EntryPrice
}

// Account: снимок аккаунта с биржи.
type Account struct {
	Equity    float64
	Available float64
	Positions []Position
}

// OpenPositions отбрасывает пыль: всё, что меньше dust, считается закрытым.
func (a Account) OpenPositions(dust float64) map[string]Position {
	out := make(map[string]Position, len(a.Positions))
	for _, p := range a.Positions {
		if p.Size < dust || p.Size <= 0 {
			continue
		}
		out[p.Symbol] = p
	}
	return out
}

// PositionLevel: то, что движок помнит о своей позиции между циклами
// ("position/TP levels"): цена выхода, вход, ATR и история DCA.
type PositionLevel struct {
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	Size         float64   `json:"size"`
	OriginalSize float64   `json:"original_size"`
	ExitPrice    float64   `json:"exit_price"`
	ATR          float64   `json:"atr"`
	OpenedAt     time.Time `json:"opened_at"`
	Dca          *DcaState `json:"dca_state,omitempty"`
}

// DcaCount: сколько усреднений уже сделано (первый вход не считается).
func (l *PositionLevel) DcaCount() int {
	if l == nil || l.Dca == nil {
		return 0
	}
	return l.Dca.EntryCount
}

// LastEntryAt: время последнего входа: последнее усреднение или открытие.
func (l *PositionLevel) LastEntryAt() time.Time {
	if l.Dca != nil && !l.Dca.LastEntryAt.IsZero() {
		return l.Dca.LastEntryAt
	}
	return l.OpenedAt
}

// ExitTarget: take-profit по символу. OrderID пустой => "ручной" режим,
// ордера на бирже нет, закрытие делает сверка по пересечению цены.
type ExitTarget struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Side      Side      `json:"side"`
	Size      float64   `json:"size"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	OpenedAt  time.Time `json:"opened_at"`
	// Stale: прежние ордера цели, которые не удалось снять.
	Stale []string `json:"stale,omitempty"`
}

func (t *ExitTarget) Manual() bool { return t == nil || t.OrderID == "" }

// DcaEntry: один вход в позицию (первый тоже пишется сюда).
type DcaEntry struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Time  time.Time `json:"time"`
}

type DcaState struct {
	Symbol       string     `json:"symbol"`
	EntryCount   int        `json:"entry_count"`
	LastEntryAt  time.Time  `json:"last_entry_at"`
	AveragePrice float64    `json:"average_price"`
	TotalSize    float64    `json:"total_size"`
	Entries      []DcaEntry `json:"entries"`
}
