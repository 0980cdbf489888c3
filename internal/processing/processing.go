package processing

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	"go.uber.org/zap"

	"sleepywoodpecker/rp-goes-volts/internal/scope"
)

const NumReadingsPerPacket = 8

type DataPacket struct {
	PacketNumber uint32
	Timestamp    uint32
	RawReadings  [NumReadingsPerPacket]float32
}

const PacketSize = unsafe.Sizeof(DataPacket{})

// packets on the wire are the struct followed by the stop sequence
var StopSequence = [2]byte{'\r', '\n'}

const FrameSize = int(PacketSize) + len(StopSequence)

// CaptureParams are the knob values handed to the engine on every tick.
type CaptureParams struct {
	SampleRate float32
	Time       float32
	Threshold  float32
	XChannel   int
	YChannel   int

	// ticks between publishes of the in-progress buffer, 0 publishes
	// completed sweeps only
	PublishEvery int
}

// Processor owns the capture engine. Every decoded packet is one engine
// tick; completed sweeps, and the in-progress buffer every PublishEvery
// ticks, are published to the frame store for the display.
type Processor struct {
	MessageQueue <-chan []byte
	logger       *zap.Logger
	engine       *scope.Engine
	frames       *FrameStore
	params       CaptureParams
	rawLog       io.Writer

	lastSweep      uint64
	sincePublished int
	packets        uint64
}

func NewProcessor(messageQueue <-chan []byte, logger *zap.Logger, engine *scope.Engine, frames *FrameStore, params CaptureParams, rawLog io.Writer) *Processor {
	return &Processor{
		MessageQueue: messageQueue,
		logger:       logger,
		engine:       engine,
		frames:       frames,
		params:       params,
		rawLog:       rawLog,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case packet, ok := <-p.MessageQueue:
			if !ok {
				p.logger.Info("[processor] message queue closed", zap.Uint64("packets", p.packets))
				return nil
			}

			if err := p.ProcessPacket(packet); err != nil {
				p.logger.Warn(
					"[processor] error decoding byte packet",
					zap.Error(err),
					zap.Int("packetLength", len(packet)),
					zap.ByteString("rawBytes", packet),
				)
			}
		case <-ctx.Done():
			p.logger.Info("[processor] received shutdown signal", zap.Uint64("packets", p.packets))
			return nil
		}
	}
}

func (p *Processor) ProcessPacket(packet []byte) error {
	decoded, err := DecodePacket(packet)
	if err != nil {
		return err
	}
	p.packets++

	p.engine.Advance(scope.Inputs{
		SampleRate: p.params.SampleRate,
		Time:       p.params.Time,
		Threshold:  p.params.Threshold,
		X:          decoded.RawReadings[p.params.XChannel],
		Y:          decoded.RawReadings[p.params.YChannel],
	})
	p.sincePublished++

	if sweep := p.engine.Sweeps(); sweep != p.lastSweep {
		p.lastSweep = sweep
		p.publish()
		p.logger.Debug("[processor] sweep complete",
			zap.Uint64("sweep", sweep),
			zap.Uint32("packetNumber", decoded.PacketNumber),
			zap.Stringer("mode", p.engine.Mode()),
		)
	} else if p.params.PublishEvery > 0 && p.sincePublished >= p.params.PublishEvery {
		p.publish()
	}

	// the raw log is a side channel, it never costs the engine a tick
	if p.rawLog != nil {
		if err := writeRawLine(p.rawLog, &decoded); err != nil {
			p.logger.Warn("[processor] error writing raw log",
				zap.Error(err),
				zap.Uint32("packetNumber", decoded.PacketNumber),
			)
		}
	}

	return nil
}

func (p *Processor) publish() {
	p.frames.Publish(p.engine)
	p.sincePublished = 0
}

func DecodePacket(packet []byte) (DataPacket, error) {
	var decoded DataPacket
	if len(packet) < int(PacketSize) {
		return decoded, fmt.Errorf("short packet: %d of %d bytes", len(packet), PacketSize)
	}
	err := binary.Read(bytes.NewReader(packet[:PacketSize]), binary.LittleEndian, &decoded)
	return decoded, err
}

// EncodePacket writes the wire form of d, stop sequence included, into buf.
func EncodePacket(buf *bytes.Buffer, d *DataPacket) error {
	if err := binary.Write(buf, binary.LittleEndian, d); err != nil {
		return err
	}
	buf.Write(StopSequence[:])
	return nil
}

func writeRawLine(w io.Writer, d *DataPacket) error {
	_, err := fmt.Fprintf(w,
		"%d,%d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f\n",
		d.PacketNumber,
		d.Timestamp,
		d.RawReadings[0],
		d.RawReadings[1],
		d.RawReadings[2],
		d.RawReadings[3],
		d.RawReadings[4],
		d.RawReadings[5],
		d.RawReadings[6],
		d.RawReadings[7],
	)
	return err
}
