package models

import "strings"

// Side как у биржи: "BUY"/"SELL" или пустая строка, если сделки нет.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite: сторона закрывающего ордера.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// Direction: направление позиции.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// ParseDirection нормализует всё, что встречается в конфиге, стейте и ответах биржи.
// Неизвестное значение превращается в Long с ok=false, вызывающий обязан
// залогировать предупреждение.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG", "BUY", "BOTH_LONG":
		return Long, true
	case "SHORT", "SELL", "BOTH_SHORT":
		return Short, true
	}
	return Long, false
}

// DirectionFromSide: BUY открывает лонг, SELL: шорт.
func DirectionFromSide(s Side) Direction {
	if s == SideSell {
		return Short
	}
	return Long
}

// EntrySide: сторона ордера, который открывает (или усредняет) позицию.
func (d Direction) EntrySide() Side {
	if d == Short {
		return SideSell
	}
	return SideBuy
}

// ExitSide: сторона take-profit / закрытия.
func (d Direction) ExitSide() Side { return d.EntrySide().Opposite() }

// Sign: +1 для лонга, -1 для шорта.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Signal: решение детектора по одному символу.
type Signal struct {
	Symbol string
	Side   Side // BUY / SELL / ""
	Reason string
	ATR    float64
	Close  float64

	// Insufficient: истории не хватило, это не ошибка.
	Insufficient bool
}

func (s Signal) HasTrade() bool { return s.Side == SideBuy || s.Side == SideSell }
