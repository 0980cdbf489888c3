package processing

import (
	"sync/atomic"

	"sleepywoodpecker/rp-goes-volts/internal/scope"
)

// The capture loop runs once per sample and is not allowed to block, so the
// old mutex store is gone. This is a triple buffer instead: the writer always
// owns one frame, the reader owns another, and the third sits in the middle
// and gets swapped atomically. Exactly one writer and one reader.

const freshBit = 1 << 2

type FrameStore struct {
	frames [3]scope.Frame

	middle atomic.Uint32 // index of the middle frame | freshBit
	back   uint32        // writer side only
	front  uint32        // reader side only
}

func NewFrameStore() *FrameStore {
	s := &FrameStore{back: 0, front: 1}
	s.middle.Store(2)
	return s
}

// Publish copies the engine state into the back frame and makes it the newest
// one. Safe to call from the capture loop: no locks, no allocation.
func (s *FrameStore) Publish(e *scope.Engine) {
	e.Snapshot(&s.frames[s.back])
	prev := s.middle.Swap(s.back | freshBit)
	s.back = prev &^ freshBit
}

// Latest returns the newest published frame and whether it changed since the
// last call. The frame stays valid until the next call to Latest.
func (s *FrameStore) Latest() (*scope.Frame, bool) {
	fresh := s.middle.Load()&freshBit != 0
	if fresh {
		prev := s.middle.Swap(s.front)
		s.front = prev &^ freshBit
	}
	return &s.frames[s.front], fresh
}
