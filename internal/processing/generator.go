package processing

import (
	"bytes"
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Generator stands in for a board when no serial port is configured. It
// produces the same wire packets at the configured sample rate: a sine on
// channel 0 and a cosine on channel 1, so lissajous mode draws a circle.
type Generator struct {
	MessageQueue chan<- []byte
	logger       *zap.Logger
	sampleRate   float64
	frequency    float64
	amplitude    float32
	batch        time.Duration

	packetNumber uint32
	phase        float64
}

func NewGenerator(messageQueue chan<- []byte, logger *zap.Logger, sampleRate, frequency float64, amplitude float32) *Generator {
	return &Generator{
		MessageQueue: messageQueue,
		logger:       logger,
		sampleRate:   sampleRate,
		frequency:    frequency,
		amplitude:    amplitude,
		batch:        10 * time.Millisecond,
	}
}

// Next builds the next wire packet.
func (g *Generator) Next() []byte {
	var d DataPacket
	d.PacketNumber = g.packetNumber
	d.Timestamp = uint32(math.Round(float64(g.packetNumber) / g.sampleRate * 1e6))
	sin, cos := math.Sincos(g.phase)
	d.RawReadings[0] = g.amplitude * float32(sin)
	d.RawReadings[1] = g.amplitude * float32(cos)

	g.packetNumber++
	g.phase += 2 * math.Pi * g.frequency / g.sampleRate
	if g.phase >= 2*math.Pi {
		g.phase -= 2 * math.Pi
	}

	var buf bytes.Buffer
	buf.Grow(FrameSize)
	// writing into a bytes.Buffer can't fail
	_ = EncodePacket(&buf, &d)
	return buf.Bytes()
}

func (g *Generator) Run(ctx context.Context) {
	defer close(g.MessageQueue)

	ticker := time.NewTicker(g.batch)
	defer ticker.Stop()

	perBatch := int(math.Ceil(g.sampleRate * g.batch.Seconds()))
	g.logger.Info("[generator] starting synthetic source",
		zap.Float64("sampleRate", g.sampleRate),
		zap.Float64("frequency", g.frequency),
		zap.Int("packetsPerBatch", perBatch),
	)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("[generator] exiting", zap.Uint32("packets", g.packetNumber))
			return
		case <-ticker.C:
			for i := 0; i < perBatch; i++ {
				select {
				case g.MessageQueue <- g.Next():
				case <-ctx.Done():
					g.logger.Info("[generator] exiting", zap.Uint32("packets", g.packetNumber))
					return
				}
			}
		}
	}
}
