package runner

import (
	"time"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/models"
	"scalp_bot/internal/store"
)

// DailySummary: счётчики за календарный день.
type DailySummary struct {
	Day    string
	Opened int
	Closed int
	PnL    float64
}

// EngineState: всё, что движок помнит между циклами. Принадлежит одному
// циклу, блокировок нет.
type EngineState struct {
	Levels  map[string]*models.PositionLevel
	Targets map[string]*models.ExitTarget

	// Positions: снимок биржи текущего цикла без пыли.
	Positions map[string]models.Position
	// LastSeen: последний известный вид позиции, нужен когда она исчезла.
	LastSeen  map[string]models.Position
	Equity    float64
	Available float64

	Symbols            []string
	Meta               map[string]models.SymbolMeta
	SymbolsRefreshedAt time.Time

	OrphanCheckedAt time.Time
	LastTradeAt     time.Time
	Daily           DailySummary
	Cycle           int64

	touched          map[string]bool
	orphanReportedAt map[string]time.Time
}

func NewEngineState(snap store.Snapshot) *EngineState {
	st := &EngineState{
		Levels:           snap.Levels,
		Targets:          snap.Targets,
		Positions:        make(map[string]models.Position),
		LastSeen:         make(map[string]models.Position),
		Meta:             make(map[string]models.SymbolMeta),
		touched:          make(map[string]bool),
		orphanReportedAt: make(map[string]time.Time),
	}
	if st.Levels == nil {
		st.Levels = make(map[string]*models.PositionLevel)
	}
	if st.Targets == nil {
		st.Targets = make(map[string]*models.ExitTarget)
	}
	return st
}

// Tracked: есть ли у символа локальная цель выхода (уровень или TP).
func (s *EngineState) Tracked(symbol string) bool {
	return s.Levels[symbol] != nil || s.Targets[symbol] != nil
}

// setPositions заменяет снимок и обновляет LastSeen.
func (s *EngineState) setPositions(acc models.Account, dust float64) {
	s.Positions = acc.OpenPositions(dust)
	s.Equity = acc.Equity
	s.Available = acc.Available
	for sym, p := range s.Positions {
		s.LastSeen[sym] = p
	}
}

func (s *EngineState) forget(symbol string) {
	delete(s.Levels, symbol)
	delete(s.Targets, symbol)
	delete(s.Positions, symbol)
	delete(s.LastSeen, symbol)
}

func sortedLevels(s *EngineState) []string  { return helper.SortedKeys(s.Levels) }
func sortedTargets(s *EngineState) []string { return helper.SortedKeys(s.Targets) }
func sortedPositions(s *EngineState) []string {
	return helper.SortedKeys(s.Positions)
}
