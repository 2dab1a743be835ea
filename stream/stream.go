// Package stream provides the channel plumbing the engine is built on: an
// unbounded side channel that concurrently running sub-tasks push into
// without blocking, and merge functions that interleave it with a primary
// stream by arrival order.
package stream

import "sync"

// SideChannel is an unbounded queue with a channel face. Push never blocks,
// so a deeply nested tool goroutine can report progress regardless of how
// fast the consumer drains the merged output. A pump goroutine forwards
// buffered items to Out in push order.
type SideChannel[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	wake   chan struct{}
	out    chan T
}

// NewSideChannel creates a side channel and starts its pump.
func NewSideChannel[T any]() *SideChannel[T] {
	s := &SideChannel[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
	}
	go s.pump()
	return s
}

// Push enqueues v without blocking. It reports false once the channel is
// closed; the item is then dropped.
func (s *SideChannel[T]) Push(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.buf = append(s.buf, v)
	s.mu.Unlock()
	s.signal()
	return true
}

// Close marks the channel closed. Items pushed before Close are still
// delivered; Out closes once they are drained. Close is idempotent and safe
// to call concurrently with Push.
func (s *SideChannel[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// Out returns the delivery channel. It closes after Close once every pushed
// item has been forwarded.
func (s *SideChannel[T]) Out() <-chan T { return s.out }

func (s *SideChannel[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves buffered items to out. Push refuses new items once closed is
// set, so the snapshot that observes closed also holds the final buffer.
func (s *SideChannel[T]) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		batch := s.buf
		s.buf = nil
		closed := s.closed
		s.mu.Unlock()

		for _, v := range batch {
			s.out <- v
		}
		if closed {
			return
		}

		<-s.wake
	}
}

// Merge interleaves primary with the items of side, yielding each value as it
// becomes available. A side item pushed while primary is quiet is delivered
// immediately. When primary ends the side channel is closed automatically;
// whatever it still holds is flushed, then the merged stream closes. The
// close also fires when primary ends because its producer failed, so the
// merge always terminates.
func Merge[T any](primary <-chan T, side *SideChannel[T]) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)
		defer side.Close()

		sideOut := side.Out()
		for primary != nil || sideOut != nil {
			select {
			case v, ok := <-primary:
				if !ok {
					primary = nil
					side.Close()
					continue
				}
				out <- v
			case v, ok := <-sideOut:
				if !ok {
					sideOut = nil
					continue
				}
				out <- v
			}
		}
	}()

	return out
}

// MergeMany fans sources into one stream by arrival order. Each source keeps
// its own internal order; values from different sources interleave according
// to when they arrive. The merged stream closes once every source is
// exhausted; a source that closes early is simply dropped from the race.
func MergeMany[T any](sources ...<-chan T) <-chan T {
	out := make(chan T)

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for _, src := range sources {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range c {
				out <- v
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
