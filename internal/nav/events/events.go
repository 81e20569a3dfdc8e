// Package events implements the out-of-band warning/event stream (E2) the
// §7 propagation policy requires for non-fatal per-tick conditions
// (clamped targets, degenerate rebuilds, per-agent faults): a bounded
// circular buffer gated by a global rate limiter, adapted from the
// teacher's EventLog. The core owns no on-disk format (§6), so unlike the
// teacher's EventLog this stream never opens a file; collaborators drain
// it in-process.
package events

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Kind enumerates the §7 warning taxonomy. Construction-time failures
// (InvalidConfiguration) are returned as plain errors, not emitted here;
// this stream only carries the non-fatal, per-tick kinds.
type Kind int

const (
	OutOfGrid Kind = iota
	RebuildDegenerate
	AgentFault
)

func (k Kind) String() string {
	switch k {
	case OutOfGrid:
		return "OutOfGrid"
	case RebuildDegenerate:
		return "RebuildDegenerate"
	case AgentFault:
		return "AgentFault"
	default:
		return "Unknown"
	}
}

// Event is one warning emission.
type Event struct {
	Kind     Kind
	Tick     uint64
	Detail   string
	Sequence uint64
}

const (
	bufferSize     = 1024
	maxEventsPerSec = 2000
)

// Stream is a bounded, rate-limited circular buffer of Events. The zero
// value is not usable; construct with New.
type Stream struct {
	buffer [bufferSize]Event
	mu     sync.Mutex

	writeHead uint64
	readHead  uint64

	limiter *rate.Limiter

	droppedCount uint64
	totalCount   uint64
}

// New allocates a Stream with the default global rate limit.
func New() *Stream {
	return &Stream{limiter: rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10)}
}

// Emit records an event, applying the global rate limit. Returns false if
// the event was rate-limited (counted as dropped, not buffered).
func (s *Stream) Emit(e Event) bool {
	if !s.limiter.Allow() {
		atomic.AddUint64(&s.droppedCount, 1)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.writeHead
	tail := s.readHead
	if head-tail >= bufferSize {
		s.readHead++
		atomic.AddUint64(&s.droppedCount, 1)
	}

	e.Sequence = head
	s.buffer[head%bufferSize] = e
	s.writeHead = head + 1
	atomic.AddUint64(&s.totalCount, 1)
	return true
}

// Drain returns, and removes, every currently buffered event in FIFO
// order (oldest first). Collaborators typically call this once per tick
// or on a polling cadence.
func (s *Stream) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(s.writeHead - s.readHead)
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = s.buffer[(s.readHead+uint64(i))%bufferSize]
	}
	s.readHead = s.writeHead
	return out
}

// DroppedCount returns the number of events dropped to rate limiting or
// buffer overflow since construction.
func (s *Stream) DroppedCount() uint64 { return atomic.LoadUint64(&s.droppedCount) }

// TotalCount returns the number of events accepted since construction.
func (s *Stream) TotalCount() uint64 { return atomic.LoadUint64(&s.totalCount) }
