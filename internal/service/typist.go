package service

import (
	"sync"
	"time"

	"socialsync/internal/model"
)

// Outbound typing events on the messages channel.
const (
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// DefaultTypingIdle is how long after the last keystroke typing_stop is sent.
const DefaultTypingIdle = 3 * time.Second

// Typist debounces keystrokes into typing bursts: one typing_start when a
// burst begins, one typing_stop when it ends (idle timeout, send, or
// conversation switch). Only one conversation can have a burst at a time.
type Typist struct {
	ch   Emitter
	idle time.Duration

	mu     sync.Mutex
	active model.ID
	timer  *time.Timer
	gen    uint64
}

func NewTypist(ch Emitter, idle time.Duration) *Typist {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &Typist{ch: ch, idle: idle}
}

// Keystroke records typing in a conversation. The first keystroke of a burst
// emits typing_start; every keystroke pushes the idle deadline back.
func (t *Typist) Keystroke(conversationID model.ID) {
	if conversationID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != conversationID {
		t.stopLocked()
		t.active = conversationID
		emit(t.ch, "Typist", EventTypingStart, model.TypingEvent{ConversationID: conversationID, IsTyping: true})
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })
}

// Stop ends the burst in conversationID, if there is one.
func (t *Typist) Stop(conversationID model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == conversationID {
		t.stopLocked()
	}
}

// StopAll ends any burst (logout, conversation deselect).
func (t *Typist) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Active returns the conversation with a burst in progress.
func (t *Typist) Active() model.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Typist) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A keystroke after this timer was armed re-armed a newer one.
	if gen != t.gen {
		return
	}
	t.stopLocked()
}

func (t *Typist) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	if t.active == "" {
		return
	}
	emit(t.ch, "Typist", EventTypingStop, model.TypingEvent{ConversationID: t.active, IsTyping: false})
	t.active = ""
}
