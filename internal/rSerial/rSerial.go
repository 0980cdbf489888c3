// r in rserial stands for "robust"
package rserial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const ReadTimeout = 5 * time.Millisecond

// Port is the part of serial.Port the reader needs.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type rserial struct {
	Port
	MessageQueue  chan<- []byte // closed when Run returns
	tempBuff      []byte
	logger        *zap.Logger
	portName      string
	stopSequence  []byte
	rawPacketSize int
}

type OutOfSyncError struct {
	ByteSequence []byte
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("[rserial] incorrect stop sequence detected: %v", e.ByteSequence)
}

// NewRSerial opens portName. rawPacketSize includes the stop sequence.
func NewRSerial(portName string, baudrate int, messageQueue chan<- []byte, logger *zap.Logger, rawPacketSize int, stopSequence []byte) (*rserial, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	return newRSerial(port, portName, messageQueue, logger, rawPacketSize, stopSequence), nil
}

func newRSerial(port Port, portName string, messageQueue chan<- []byte, logger *zap.Logger, rawPacketSize int, stopSequence []byte) *rserial {
	return &rserial{
		Port:          port,
		MessageQueue:  messageQueue,
		tempBuff:      make([]byte, rawPacketSize),
		logger:        logger,
		portName:      portName,
		stopSequence:  stopSequence,
		rawPacketSize: rawPacketSize,
	}
}

func (r *rserial) initialize(ctx context.Context) error {
	if err := r.SetReadTimeout(ReadTimeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	if err := r.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	return r.sync(ctx)
}

// Run reads packets until ctx is done or the port fails.
func (r *rserial) Run(ctx context.Context) error {
	defer close(r.MessageQueue)

	if err := r.initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		err := r.ReadPacket(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			r.logger.Info("[rserial] exiting from rserial read loop", zap.String("portName", r.portName))
			return nil
		}

		var oosError *OutOfSyncError
		if !errors.As(err, &oosError) {
			r.logger.Error("[rserial] read failed", zap.Error(err), zap.String("portName", r.portName))
			return err
		}

		r.logger.Warn("[rserial] packet out of sync", zap.String("portName", r.portName), zap.ByteString("payload", oosError.ByteSequence))
		if err := r.sync(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (r *rserial) ReadPacket(ctx context.Context) error {
	count := 0
	for count < r.rawPacketSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		// a read timeout comes back as n == 0 with no error
		n, err := r.Read(r.tempBuff[count:])
		if err != nil {
			return err
		}
		count += n
	}

	// validate that the packet is valid by checking the stop sequence at the end
	if !bytes.HasSuffix(r.tempBuff, r.stopSequence) {
		return &OutOfSyncError{
			ByteSequence: bytes.Clone(r.tempBuff),
		}
	}

	// tempBuff gets reused for the next read
	select {
	case r.MessageQueue <- bytes.Clone(r.tempBuff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sync drops bytes up to and including the next stop sequence.
func (r *rserial) sync(ctx context.Context) error {
	r.logger.Warn("[rserial] Resyncing serial port", zap.String("portName", r.portName))
	onebyte := make([]byte, 1)
	matched := 0

	for matched < len(r.stopSequence) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(onebyte)
		if err != nil {
			return fmt.Errorf("resync %s: %w", r.portName, err)
		}
		if n == 0 {
			continue
		}
		switch {
		case onebyte[0] == r.stopSequence[matched]:
			matched++
		case onebyte[0] == r.stopSequence[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}
