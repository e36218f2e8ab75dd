package service

import (
	"sync/atomic"
	"time"
)

// State: то, что цикл движка сообщает наружу. Пишет только движок,
// HTTP-обработчики читают.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastCycleUnix atomic.Int64 // unix seconds
	cycles        atomic.Int64
	tracked       atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// TouchCycle вызывается в конце каждого цикла; после первого сервис готов.
func (s *State) TouchCycle(t time.Time, tracked int) {
	s.lastCycleUnix.Store(t.Unix())
	s.cycles.Add(1)
	s.tracked.Store(int64(tracked))
	s.ready.Store(true)
}

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Cycles() int64  { return s.cycles.Load() }
func (s *State) Tracked() int64 { return s.tracked.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
