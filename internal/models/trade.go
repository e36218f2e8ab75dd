package models

import "time"

type CloseReason string

const (
	ReasonTakeProfit CloseReason = "tp_alcanzado"
	ReasonOrphan     CloseReason = "orphan"
	ReasonManual     CloseReason = "manual"
	ReasonBackup     CloseReason = "respaldo"
)

type PnLSource string

const (
	PnLRealized   PnLSource = "realized"
	PnLUnrealized PnLSource = "unrealized"
)

// TradeRecord: строка истории сделок, ровно одна на закрытую позицию.
type TradeRecord struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	Symbol          string        `json:"symbol"`
	Direction       Direction     `json:"direction"`
	EntryPrice      float64       `json:"entry_price"`
	ExitPrice       float64       `json:"exit_price"`
	ExitTarget      float64       `json:"exit_target"`
	RealizedPnL     float64       `json:"realized_pnl"`
	PnLSource       PnLSource     `json:"pnl_source"`
	HoldingDuration time.Duration `json:"holding_duration"`
	Reason          CloseReason   `json:"close_reason"`
}

// DcaRecord: строка истории усреднений.
type DcaRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	OriginalPrice float64   `json:"original_price"`
	DcaPrice      float64   `json:"dca_price"`
	DcaSize       float64   `json:"dca_size"`
	AveragePrice  float64   `json:"average_price"`
	NewExit       float64   `json:"new_exit"`
	EntryIndex    int       `json:"entry_index"`
}
