package engine

import (
	"time"

	"github.com/hailam/shogiplay/internal/board"
)

// USILimits contains USI `go` parameters.
type USILimits struct {
	Time     [2]time.Duration // btime, wtime (remaining main time, indexed by color)
	Inc      [2]time.Duration // binc, winc (Fischer increment per move)
	Byoyomi  time.Duration    // per-move overtime once main time is spent
	MoveTime time.Duration    // fixed time per move (overrides other time controls)
	Depth    int              // maximum search depth
	Nodes    uint64           // maximum nodes to search
	Infinite bool             // search until stopped
}

// networkMargin is kept back from every hard limit for I/O latency.
const networkMargin = 50 * time.Millisecond

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // Target time for this move
	maximumTime time.Duration // Hard limit for this move
	startTime   time.Time     // When search started
	unlimited   bool
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the budget for a new search. ply is the current game ply.
func (tm *TimeManager) Init(limits USILimits, us board.Color, ply int) {
	tm.startTime = time.Now()
	tm.unlimited = false

	// Fixed move time mode
	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]
	byoyomi := limits.Byoyomi

	if limits.Infinite || (timeLeft == 0 && inc == 0 && byoyomi == 0) {
		tm.unlimited = true
		tm.optimumTime = 0
		tm.maximumTime = 0
		return
	}

	// Shogi games run longer than chess games; expect more moves early on
	mtg := 60 - ply/4
	if mtg < 15 {
		mtg = 15
	}

	base := timeLeft/time.Duration(mtg) + inc*9/10
	tm.optimumTime = base + byoyomi*9/10

	// Hard limit: a share of the main time plus the full overtime period
	tm.maximumTime = min(base*4, timeLeft*8/10) + byoyomi - networkMargin
	if tm.maximumTime > timeLeft+byoyomi-networkMargin {
		tm.maximumTime = timeLeft + byoyomi - networkMargin
	}

	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 20*time.Millisecond {
		tm.maximumTime = 20 * time.Millisecond
	}
}

// SearchLimits converts the budget into engine limits. The hard limit
// becomes the search deadline.
func (tm *TimeManager) SearchLimits(limits USILimits) SearchLimits {
	sl := SearchLimits{
		Depth:    limits.Depth,
		Nodes:    limits.Nodes,
		Infinite: limits.Infinite,
	}
	if !tm.unlimited {
		sl.MoveTime = tm.maximumTime
		sl.SoftTime = tm.optimumTime
	}
	return sl
}

// Unlimited reports whether no clock applies to this search.
func (tm *TimeManager) Unlimited() bool {
	return tm.unlimited
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}
