package session

import (
	"sync"

	"socialsync/internal/queue"
)

// DefaultEventLogSize is how many recent sync events are kept in memory.
const DefaultEventLogSize = 200

// LoggedEvent is a sync event with its position in the log.
type LoggedEvent struct {
	Seq   uint64          `json:"seq"`
	Event queue.SyncEvent `json:"event"`
}

// EventLog is a fixed-size ring of recent sync events (toasts, inbound
// summaries). Sequence numbers increase monotonically so pollers can ask
// for everything after the last one they saw.
type EventLog struct {
	mu   sync.Mutex
	buf  []LoggedEvent
	next int
	full bool
	seq  uint64
}

func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{buf: make([]LoggedEvent, size)}
}

// Add appends an event, overwriting the oldest when full.
func (l *EventLog) Add(ev queue.SyncEvent) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.buf[l.next] = LoggedEvent{Seq: l.seq, Event: ev}
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	return l.seq
}

// Since returns events with Seq > after, oldest first.
func (l *EventLog) Since(after uint64) []LoggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LoggedEvent, 0)
	for _, e := range l.ordered() {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the sequence number of the newest event, or 0.
func (l *EventLog) Last() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

func (l *EventLog) ordered() []LoggedEvent {
	if !l.full {
		return l.buf[:l.next]
	}
	out := make([]LoggedEvent, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}
