// Package mock provides an in-memory, scripted implementation of
// [capture.Source] for use in unit tests.
//
// The mock replays a fixed script of blocks (optionally followed by an
// injected error) and then blocks until Close, mimicking a microphone that
// has gone quiet. Set the exported fields before use; inspect the Call*
// fields after.
//
// Typical usage:
//
//	src := &mock.Source{Blocks: [][]int16{block1, block2}}
//	rec := recorder.New(cfg, recorder.WithSource(src))
package mock

import (
	"sync"

	"github.com/voxcap/voxcap/pkg/capture"
)

// Compile-time interface assertion.
var _ capture.Source = (*Source)(nil)

// Source is a scripted mock implementation of [capture.Source].
type Source struct {
	// Blocks are returned by successive ReadBlock calls, one block per call.
	// A block shorter than the read buffer produces a short read.
	Blocks [][]int16

	// ReadErr, when non-nil, is returned by the ReadBlock call after the
	// script is exhausted instead of blocking. Use it to simulate a
	// mid-recording device failure.
	ReadErr error

	// StartErr, when non-nil, is returned by Start.
	StartErr error

	// CallCountStart and CallCountClose record lifecycle calls.
	CallCountStart int
	CallCountClose int

	mu        sync.Mutex
	next      int
	closed    bool
	closedSig chan struct{}
}

// Start implements [capture.Source].
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.closedSig == nil {
		s.closedSig = make(chan struct{})
	}
	return s.StartErr
}

// ReadBlock replays the next scripted block. Once the script is exhausted it
// returns ReadErr if set, otherwise it blocks until Close, like a live
// microphone waiting for the session to end.
func (s *Source) ReadBlock(buf []int16) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, capture.ErrSourceClosed
	}
	if s.next < len(s.Blocks) {
		block := s.Blocks[s.next]
		s.next++
		s.mu.Unlock()
		return copy(buf, block), nil
	}
	err := s.ReadErr
	sig := s.closedSig
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if sig != nil {
		<-sig
	}
	return 0, capture.ErrSourceClosed
}

// Close implements [capture.Source]. Unblocks a pending ReadBlock.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		if s.closedSig != nil {
			close(s.closedSig)
		} else {
			s.closedSig = make(chan struct{})
			close(s.closedSig)
		}
	}
	return nil
}
