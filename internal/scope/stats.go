package scope

import "math"

// StatsInterval is how many display refreshes pass between two stats scans.
const StatsInterval = 4

type Stats struct {
	RMS        float32
	PeakToPeak float32
	Min        float32
	Max        float32
}

// Calculate recomputes s from values in storage order.
func (s *Stats) Calculate(values []float32) {
	if len(values) == 0 {
		*s = Stats{}
		return
	}

	var sumSquares float64
	vmax := float32(math.Inf(-1))
	vmin := float32(math.Inf(1))
	for _, v := range values {
		sumSquares += float64(v) * float64(v)
		if v > vmax {
			vmax = v
		}
		if v < vmin {
			vmin = v
		}
	}

	s.RMS = float32(math.Sqrt(sumSquares / float64(len(values))))
	s.Max = vmax
	s.Min = vmin
	s.PeakToPeak = vmax - vmin
}

// Display is the read side of the scope. It keeps the trace in display order
// and refreshes statistics every StatsInterval calls to Refresh.
type Display struct {
	frame int

	StatsX Stats
	StatsY Stats

	traceX [BufferSize]float32
	traceY [BufferSize]float32
}

// Refresh is called once per display tick. It reports whether the stats were
// recomputed on this call.
func (d *Display) Refresh(f *Frame) bool {
	for i := 0; i < BufferSize; i++ {
		d.traceX[i], d.traceY[i] = f.At(i)
	}

	d.frame++
	if d.frame < StatsInterval {
		return false
	}
	d.frame = 0
	d.StatsX.Calculate(f.X[:])
	d.StatsY.Calculate(f.Y[:])
	return true
}

// Trace returns the last refreshed points in display order.
func (d *Display) Trace() (x, y []float32) {
	return d.traceX[:], d.traceY[:]
}
