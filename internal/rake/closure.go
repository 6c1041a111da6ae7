package rake

import "context"

// ClosureCalculator derives the shortage figure when a rake closes. Kept as
// its own type so the arithmetic stays testable apart from persistence.
type ClosureCalculator struct{}

// Shortage computes declared total minus dispatched. Over-dispatch cannot
// occur because allocations are balance-checked at creation, so the result
// is never negative for consistent data; a tolerance absorbs float noise.
func (ClosureCalculator) Shortage(_ context.Context, total, dispatched float64) float64 {
	shortage := total - dispatched
	if shortage < 0 && shortage > -balanceTolerance {
		shortage = 0
	}
	return shortage
}

// balanceTolerance absorbs float rounding when comparing metric-tonne sums.
// Matches the 0.01 MT slack the operation uses elsewhere.
const balanceTolerance = 0.01
