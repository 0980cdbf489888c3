package processing

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sleepywoodpecker/rp-goes-volts/internal/scope"
)

const SamplingChannelName = "volts"

// Sampler is the display side: it runs at the refresh rate, pulls the newest
// sweep from the frame store and refreshes the scope display. Whenever the
// stats are recomputed they are pushed to telegraf as influx lines.
type Sampler struct {
	refreshInterval time.Duration
	frames          *FrameStore
	display         scope.Display
	telemetry       io.Writer
	logger          *zap.Logger
	now             func() time.Time

	line []byte
}

func NewSampler(refreshInterval time.Duration, frames *FrameStore, telemetry io.Writer, logger *zap.Logger) *Sampler {
	return &Sampler{
		refreshInterval: refreshInterval,
		frames:          frames,
		telemetry:       telemetry,
		logger:          logger,
		now:             time.Now,
	}
}

// Refresh runs one display tick. It reports whether the stats were recomputed.
func (s *Sampler) Refresh() bool {
	frame, _ := s.frames.Latest()
	if !s.display.Refresh(frame) {
		return false
	}

	ts := s.now().UnixNano()
	s.line = s.line[:0]
	s.line = appendInfluxLine(s.line, "x", &s.display.StatsX, frame, ts)
	s.line = appendInfluxLine(s.line, "y", &s.display.StatsY, frame, ts)

	s.logger.Debug("[sampler] stats recomputed",
		zap.Uint64("sweep", frame.Sweep),
		zap.Float32("rmsX", s.display.StatsX.RMS),
		zap.Float32("vppX", s.display.StatsX.PeakToPeak),
		zap.Float32("rmsY", s.display.StatsY.RMS),
		zap.Float32("vppY", s.display.StatsY.PeakToPeak),
	)

	if s.telemetry != nil {
		if err := writeAll(s.telemetry, s.line); err != nil {
			s.logger.Warn("[sampler] Error writing data to UDP connection", zap.Error(err))
		}
	}
	return true
}

func (s *Sampler) Display() *scope.Display {
	return &s.display
}

func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Refresh()
		case <-ctx.Done():
			s.logger.Info("[sampler] received shutdown signal")
			return
		}
	}
}

// volts,channel=x,mode=triggered rms=0.71,vpp=2.00,min=-1.00,max=1.00,sweep=12i 1700000000000000000
func appendInfluxLine(b []byte, channel string, st *scope.Stats, f *scope.Frame, ts int64) []byte {
	mode := scope.Triggered
	if f.Lissajous {
		mode = scope.FreeRunning
	}
	b = append(b, SamplingChannelName...)
	b = append(b, ",channel="...)
	b = append(b, channel...)
	b = append(b, ",mode="...)
	b = append(b, mode.String()...)
	b = fmt.Appendf(b, " rms=%.4f,vpp=%.4f,min=%.4f,max=%.4f,sweep=%di ", st.RMS, st.PeakToPeak, st.Min, st.Max, f.Sweep)
	b = strconv.AppendInt(b, ts, 10)
	return append(b, '\n')
}

func writeAll(w io.Writer, data []byte) error {
	totalWritten := 0
	for totalWritten < len(data) {
		n, err := w.Write(data[totalWritten:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		totalWritten += n
	}
	return nil
}
