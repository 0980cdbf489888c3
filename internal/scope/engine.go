package scope

import "math"

const BufferSize = 512

const (
	MinTime = -16.0
	MaxTime = -6.0

	// the trigger input has to drop this far below the threshold to re-arm
	TriggerHysteresis = 0.1

	// longest wait for a trigger edge once a sweep is complete, in seconds
	HoldTime = 0.1
)

// Mode selects how a full buffer is re-armed.
type Mode uint8

const (
	Triggered Mode = iota
	FreeRunning
)

func (m Mode) String() string {
	if m == FreeRunning {
		return "lissajous"
	}
	return "triggered"
}

// Inputs are the values the host hands over on every sample tick.
type Inputs struct {
	SampleRate float32
	Time       float32 // log2 of the seconds between stored samples
	Threshold  float32
	X          float32
	Y          float32
}

// Engine records two input channels into fixed buffers, one sample per
// decimation period, and re-arms either immediately (FreeRunning) or on a
// rising edge of X / hold timeout (Triggered).
//
// Engine is not safe for concurrent use. Advance is the only writer; readers
// on other goroutines should go through Snapshot.
type Engine struct {
	bufferX [BufferSize]float32
	bufferY [BufferSize]float32

	cursor int
	// ticks since the last stored sample while capturing, ticks waited while full
	frameIndex int

	mode   Mode
	sweeps uint64

	resetTrigger SchmittTrigger
}

func NewEngine() *Engine {
	return &Engine{}
}

// FramesPerSample returns how many ticks are skipped between two stored
// samples for the given time knob value.
func FramesPerSample(sampleRate, timeKnob float32) int {
	t := float64(timeKnob)
	if t < MinTime {
		t = MinTime
	} else if t > MaxTime {
		t = MaxTime
	}
	deltaTime := math.Exp2(t)
	return int(math.Ceil(deltaTime * float64(sampleRate)))
}

// HoldTicks is the trigger timeout expressed in ticks.
func HoldTicks(sampleRate float32) int {
	return int(math.Ceil(float64(sampleRate) * HoldTime))
}

// Advance runs one sample tick. It must not block or allocate.
func (e *Engine) Advance(in Inputs) {
	frameCount := FramesPerSample(in.SampleRate, in.Time)

	if e.cursor < BufferSize {
		e.frameIndex++
		if e.frameIndex > frameCount {
			e.frameIndex = 0
			e.bufferX[e.cursor] = in.X
			e.bufferY[e.cursor] = in.Y
			e.cursor++
			if e.cursor == BufferSize {
				e.sweeps++
			}
		}
	}

	if e.cursor < BufferSize {
		return
	}

	if e.mode == FreeRunning {
		e.rearm()
		return
	}

	// don't fire right away if the trigger input is already high
	if e.frameIndex == 0 {
		e.resetTrigger.Reset()
	}
	e.frameIndex++

	e.resetTrigger.SetThresholds(in.Threshold-TriggerHysteresis, in.Threshold)
	if e.resetTrigger.Process(in.X) || e.frameIndex >= HoldTicks(in.SampleRate) {
		e.rearm()
	}
}

func (e *Engine) rearm() {
	e.cursor = 0
	e.frameIndex = 0
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// SetMode switches the re-arm policy. A sweep in progress is kept.
func (e *Engine) SetMode(m Mode) {
	e.mode = m
}

func (e *Engine) Lissajous() bool {
	return e.mode == FreeRunning
}

// Cursor is the next write index; BufferSize means the buffer is full and
// waiting to be re-armed.
func (e *Engine) Cursor() int {
	return e.cursor
}

// Sweeps counts how many times the buffer has been filled.
func (e *Engine) Sweeps() uint64 {
	return e.sweeps
}

// BufferX exposes the X buffer in storage order. Callers must not modify it.
func (e *Engine) BufferX() *[BufferSize]float32 {
	return &e.bufferX
}

// BufferY exposes the Y buffer in storage order. Callers must not modify it.
func (e *Engine) BufferY() *[BufferSize]float32 {
	return &e.bufferY
}

// Snapshot copies the engine's display state into f.
func (e *Engine) Snapshot(f *Frame) {
	f.X = e.bufferX
	f.Y = e.bufferY
	f.Cursor = e.cursor
	f.Lissajous = e.mode == FreeRunning
	f.Sweep = e.sweeps
}

// Frame is an immutable copy of the capture buffers handed to the display.
type Frame struct {
	X         [BufferSize]float32
	Y         [BufferSize]float32
	Cursor    int
	Lissajous bool
	Sweep     uint64
}

// At returns the i-th point in display order. In lissajous mode the buffer is
// read circularly starting at the cursor so the newest sweep has no seam.
func (f *Frame) At(i int) (x, y float32) {
	j := i
	if f.Lissajous {
		j = (i + f.Cursor) % BufferSize
	}
	return f.X[j], f.Y[j]
}
