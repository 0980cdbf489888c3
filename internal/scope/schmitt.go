package scope

type triggerState uint8

const (
	stateUnknown triggerState = iota
	stateLow
	stateHigh
)

// SchmittTrigger is a debounced rising-edge detector with separate low and
// high thresholds.
type SchmittTrigger struct {
	low   float32
	high  float32
	state triggerState
}

func (s *SchmittTrigger) SetThresholds(low, high float32) {
	s.low = low
	s.high = high
}

// Process feeds one value and reports whether it completed a low -> high
// transition. After Reset the first value only establishes the level.
func (s *SchmittTrigger) Process(in float32) bool {
	switch s.state {
	case stateLow:
		if in >= s.high {
			s.state = stateHigh
			return true
		}
	case stateHigh:
		if in <= s.low {
			s.state = stateLow
		}
	default:
		if in >= s.high {
			s.state = stateHigh
		} else if in <= s.low {
			s.state = stateLow
		}
	}
	return false
}

func (s *SchmittTrigger) Reset() {
	s.state = stateUnknown
}

func (s *SchmittTrigger) IsHigh() bool {
	return s.state == stateHigh
}
