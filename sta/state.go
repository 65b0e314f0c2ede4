package sta

import (
	"math"

	"code.hybscloud.com/atomix"
)

// timingState holds the per-node analysis results. Times are stored as
// float bits in atomic words because neighbors read them while the
// owning operator updates them; the scheduling flags deduplicate pushes
// of the same node.
type timingState struct {
	level    []atomix.Int64
	revLevel []atomix.Int64

	arrival  []atomix.Uint64
	required []atomix.Uint64

	onLevelList []atomix.Int32
	onTimeList  []atomix.Int32
}

func newTimingState(n int) *timingState {
	return &timingState{
		level:       make([]atomix.Int64, n),
		revLevel:    make([]atomix.Int64, n),
		arrival:     make([]atomix.Uint64, n),
		required:    make([]atomix.Uint64, n),
		onLevelList: make([]atomix.Int32, n),
		onTimeList:  make([]atomix.Int32, n),
	}
}

func (s *timingState) arrivalOf(node int32) float64 {
	return math.Float64frombits(s.arrival[node].Load())
}

func (s *timingState) storeArrival(node int32, t float64) {
	s.arrival[node].Store(math.Float64bits(t))
}

func (s *timingState) requiredOf(node int32) float64 {
	return math.Float64frombits(s.required[node].Load())
}

func (s *timingState) storeRequired(node int32, t float64) {
	s.required[node].Store(math.Float64bits(t))
}
