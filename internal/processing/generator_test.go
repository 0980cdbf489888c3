package processing

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestGenerator_Next(t *testing.T) {
	g := NewGenerator(nil, zaptest.NewLogger(t), 1000, 250, 5)

	want := [][2]float32{{0, 5}, {5, 0}, {0, -5}, {-5, 0}}
	for i, w := range want {
		raw := g.Next()
		if len(raw) != FrameSize || !bytes.HasSuffix(raw, StopSequence[:]) {
			t.Fatalf("packet %d: bad wire frame", i)
		}

		d, err := DecodePacket(raw)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if d.PacketNumber != uint32(i) {
			t.Errorf("expected packet number %d, got %d", i, d.PacketNumber)
		}
		if d.Timestamp != uint32(i*1000) {
			t.Errorf("expected timestamp %dus, got %d", i*1000, d.Timestamp)
		}
		if math.Abs(float64(d.RawReadings[0]-w[0])) > 1e-4 || math.Abs(float64(d.RawReadings[1]-w[1])) > 1e-4 {
			t.Errorf("packet %d: expected %v, got (%v, %v)", i, w, d.RawReadings[0], d.RawReadings[1])
		}
	}
}

func TestGenerator_Run(t *testing.T) {
	queue := make(chan []byte, 64)
	g := NewGenerator(queue, zaptest.NewLogger(t), 1000, 50, 1)
	g.batch = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)

	for i := 0; i < 10; i++ {
		select {
		case raw := <-queue:
			if _, err := DecodePacket(raw); err != nil {
				t.Fatalf("packet %d: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("generator stalled")
		}
	}
	cancel()

	// Run closes the queue on the way out
	for range queue {
	}
}
