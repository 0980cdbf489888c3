package rserial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"sleepywoodpecker/rp-goes-volts/internal/processing"
)

type fakePort struct {
	r       io.Reader
	timeout time.Duration
	resets  int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *fakePort) Close() error               { p.closed = true; return nil }
func (p *fakePort) ResetInputBuffer() error    { p.resets++; return nil }
func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

// idleReader behaves like a serial port with nothing to read.
type idleReader struct{}

func (idleReader) Read([]byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func frame(t *testing.T, n uint32) []byte {
	t.Helper()
	d := processing.DataPacket{PacketNumber: n, Timestamp: n * 10}
	d.RawReadings[0] = 1.5
	d.RawReadings[1] = -1.5
	var buf bytes.Buffer
	if err := processing.EncodePacket(&buf, &d); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRun_ResyncsAfterBadFrame(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("tail of an old packet\r\n")
	stream.Write(frame(t, 1))
	stream.Write(frame(t, 2))
	stream.WriteString("0123456789")
	stream.Write(frame(t, 3))
	stream.Write(frame(t, 4))

	port := &fakePort{r: &stream}
	queue := make(chan []byte, 16)
	core, logs := observer.New(zap.WarnLevel)
	r := newRSerial(port, "fake", queue, zap.New(core), processing.FrameSize, processing.StopSequence[:])

	err := r.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF once the stream ends, got %v", err)
	}
	if port.timeout != ReadTimeout || port.resets != 1 {
		t.Errorf("port not initialized: timeout=%v resets=%d", port.timeout, port.resets)
	}

	var got []uint32
	for raw := range queue {
		d, err := processing.DecodePacket(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, d.PacketNumber)
	}

	want := []uint32{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("expected packets %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected packets %v, got %v", want, got)
			break
		}
	}

	if logs.FilterMessage("[rserial] packet out of sync").Len() != 1 {
		t.Errorf("expected one out of sync warning, got %d", logs.FilterMessage("[rserial] packet out of sync").Len())
	}
}

func TestReadPacket_OutOfSync(t *testing.T) {
	raw := frame(t, 9)
	raw[len(raw)-1] = 'x'

	r := newRSerial(&fakePort{r: bytes.NewReader(raw)}, "fake", make(chan []byte, 1), zaptest.NewLogger(t), processing.FrameSize, processing.StopSequence[:])

	err := r.ReadPacket(context.Background())
	var oos *OutOfSyncError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfSyncError, got %v", err)
	}
	if !bytes.Equal(oos.ByteSequence, raw) {
		t.Errorf("expected the bad bytes in the error")
	}
}

func TestReadPacket_CopiesBuffer(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(frame(t, 1))
	stream.Write(frame(t, 2))

	queue := make(chan []byte, 2)
	r := newRSerial(&fakePort{r: &stream}, "fake", queue, zaptest.NewLogger(t), processing.FrameSize, processing.StopSequence[:])

	for i := 0; i < 2; i++ {
		if err := r.ReadPacket(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	first, _ := processing.DecodePacket(<-queue)
	if first.PacketNumber != 1 {
		t.Errorf("first packet was overwritten by the second read: %d", first.PacketNumber)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	queue := make(chan []byte)
	r := newRSerial(&fakePort{r: idleReader{}}, "fake", queue, zaptest.NewLogger(t), processing.FrameSize, processing.StopSequence[:])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, ok := <-queue; ok {
		t.Error("expected the queue to be closed")
	}
}
