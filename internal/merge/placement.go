package merge

import (
	"math"

	"github.com/jonathan/police-terminal/internal/types"
)

// MaxPlacementAttempts bounds the rejection sampling for one marker.
const MaxPlacementAttempts = 200

const (
	placeMin      = 10.0
	placeSpan     = 80.0
	minSeparation = 10.0
)

// fallbackSlots is the static marker layout of the map template.
var fallbackSlots = []types.Position{
	{Top: 20, Left: 30},
	{Top: 40, Left: 70},
	{Top: 60, Left: 20},
	{Top: 70, Left: 50},
	{Top: 30, Left: 85},
}

// place draws n marker positions in [10, 90]% on both axes. A draw is
// rejected when it lies within 10 points of an earlier position on both
// axes. After MaxPlacementAttempts a fixed slot is used.
func (m *Merger) place(n int) []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	placed := make([]types.Position, 0, n)
	for i := 0; i < n; i++ {
		p, ok := m.sample(placed)
		if !ok {
			p = fallbackSlot(i, placed)
		}
		placed = append(placed, p)
	}
	return placed
}

func (m *Merger) sample(placed []types.Position) (types.Position, bool) {
	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		p := types.Position{
			Top:  placeMin + m.rng.Float64()*placeSpan,
			Left: placeMin + m.rng.Float64()*placeSpan,
		}
		if !collides(p, placed) {
			return p, true
		}
	}
	return types.Position{}, false
}

// fallbackSlot prefers the first free layout slot, then the i-th one.
func fallbackSlot(i int, placed []types.Position) types.Position {
	for _, slot := range fallbackSlots {
		if !collides(slot, placed) {
			return slot
		}
	}
	return fallbackSlots[i%len(fallbackSlots)]
}

func collides(p types.Position, placed []types.Position) bool {
	for _, q := range placed {
		if math.Abs(p.Top-q.Top) < minSeparation && math.Abs(p.Left-q.Left) < minSeparation {
			return true
		}
	}
	return false
}
