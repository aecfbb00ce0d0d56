package process

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"parley-server/internal/infrastructure/logger"
)

// maxEventLine bounds a single stdout line from the assistant process.
const maxEventLine = 1 << 20

var ErrHandleDead = errors.New("assistant process is no longer running")

type listener struct {
	ch   chan StreamEvent
	done chan struct{}
}

// Handle wraps one running assistant process. A single reader goroutine
// decodes NDJSON events from stdout and fans them out, in order, to every
// subscriber. Writes to stdin are serialized by a mutex.
type Handle struct {
	ConversationID string

	stdin     io.Writer
	terminate func()

	mu         sync.Mutex
	listeners  map[int]*listener
	nextID     int
	dead       bool
	lastActive time.Time

	now func() time.Time
}

// NewHandle wires a handle over the process's pipes and starts the stdout
// reader. terminate must stop the underlying process; it is called by Close
// and is safe to call more than once.
func NewHandle(conversationID string, stdin io.Writer, stdout io.Reader, terminate func()) *Handle {
	h := &Handle{
		ConversationID: conversationID,
		stdin:          stdin,
		terminate:      terminate,
		listeners:      make(map[int]*listener),
		now:            time.Now,
	}
	h.lastActive = h.now()
	go h.readLoop(stdout)
	return h
}

func (h *Handle) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			log := logger.GetLogger()
			log.Warn().
				Err(err).
				Str("conversation_id", h.ConversationID).
				Msg("dropping malformed assistant event")
			continue
		}
		h.fanout(event)
	}

	// stdout closed: the process exited or was stopped. Any subscriber still
	// waiting for a reply gets a terminal error event.
	h.mu.Lock()
	h.dead = true
	remaining := make([]*listener, 0, len(h.listeners))
	for id, l := range h.listeners {
		remaining = append(remaining, l)
		delete(h.listeners, id)
	}
	h.mu.Unlock()

	for _, l := range remaining {
		select {
		case l.ch <- StreamEvent{Type: EventError, Error: "assistant process exited unexpectedly"}:
		case <-l.done:
		}
		close(l.ch)
	}
}

// fanout delivers one event to every current subscriber. Delivery happens
// outside the handle mutex so a subscriber that has stopped receiving cannot
// wedge Send, Subscribe or Unsubscribe; its done channel unblocks the send.
func (h *Handle) fanout(event StreamEvent) {
	h.mu.Lock()
	h.lastActive = h.now()
	targets := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.Unlock()

	for _, l := range targets {
		select {
		case l.ch <- event:
		case <-l.done:
		}
	}
}

// Send writes one user prompt to the process's stdin.
func (h *Handle) Send(content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead {
		return ErrHandleDead
	}
	h.lastActive = h.now()

	payload, err := json.Marshal(prompt{Role: "user", Content: content})
	if err != nil {
		return err
	}
	if _, err := h.stdin.Write(append(payload, '\n')); err != nil {
		return err
	}
	return nil
}

// Subscribe registers a listener for subsequent events. The returned channel
// is closed when the process dies; callers must Unsubscribe when done.
func (h *Handle) Subscribe(buffer int) (int, <-chan StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	l := &listener{
		ch:   make(chan StreamEvent, buffer),
		done: make(chan struct{}),
	}
	if h.dead {
		close(l.ch)
		return id, l.ch
	}
	h.listeners[id] = l
	return id, l.ch
}

// Unsubscribe detaches a listener. The process keeps running; events simply
// stop being delivered to this subscriber.
func (h *Handle) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.listeners[id]
	if !ok {
		return
	}
	close(l.done)
	delete(h.listeners, id)
}

// Close stops the underlying process. The reader goroutine observes the
// closed stdout and finishes delivery to any remaining subscribers.
func (h *Handle) Close() {
	h.mu.Lock()
	h.dead = true
	h.mu.Unlock()
	h.terminate()
}

func (h *Handle) Dead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

func (h *Handle) LastActive() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastActive
}
