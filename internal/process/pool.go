package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/metrics"
)

// Spawner starts one assistant process for a conversation.
type Spawner interface {
	Spawn(conversationID string) (*Handle, error)
}

// Pool keeps at most one live assistant process per conversation. Concurrent
// Acquire calls for the same conversation collapse into a single spawn.
type Pool struct {
	spawner     Spawner
	idleTimeout time.Duration

	group singleflight.Group

	mu      sync.Mutex
	handles map[string]*Handle

	now func() time.Time
}

func NewPool(spawner Spawner, idleTimeout time.Duration) *Pool {
	return &Pool{
		spawner:     spawner,
		idleTimeout: idleTimeout,
		handles:     make(map[string]*Handle),
		now:         time.Now,
	}
}

// Acquire returns the live handle for the conversation, spawning one if none
// exists. A handle whose process has died is replaced.
func (p *Pool) Acquire(conversationID string) (*Handle, error) {
	p.mu.Lock()
	if h, ok := p.handles[conversationID]; ok && !h.Dead() {
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(conversationID, func() (interface{}, error) {
		p.mu.Lock()
		if h, ok := p.handles[conversationID]; ok && !h.Dead() {
			p.mu.Unlock()
			return h, nil
		}
		p.mu.Unlock()

		h, err := p.spawner.Spawn(conversationID)
		if err != nil {
			return nil, fmt.Errorf("spawning assistant process: %w", err)
		}

		p.mu.Lock()
		old, replaced := p.handles[conversationID]
		p.handles[conversationID] = h
		p.mu.Unlock()

		metrics.ProcessesSpawnedTotal.Inc()
		if replaced {
			// The dead handle still occupied its gauge slot; the replacement
			// takes it over instead of counting twice.
			old.Close()
		} else {
			metrics.ProcessesActive.Inc()
		}
		log := logger.GetLogger()
		log.Info().
			Str("conversation_id", conversationID).
			Msg("assistant process spawned")
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Release stops and forgets the conversation's process, if any. Releasing a
// conversation with no process is a no-op.
func (p *Pool) Release(conversationID string) {
	p.mu.Lock()
	h, ok := p.handles[conversationID]
	if ok {
		delete(p.handles, conversationID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	h.Close()
	metrics.ProcessesActive.Dec()
	log := logger.GetLogger()
	log.Info().
		Str("conversation_id", conversationID).
		Msg("assistant process released")
}

// ReapIdle releases every process that has been idle past the pool's idle
// timeout, plus any that already died, and returns the number released.
func (p *Pool) ReapIdle() int {
	cutoff := p.now().Add(-p.idleTimeout)

	p.mu.Lock()
	var stale []string
	for id, h := range p.handles {
		if h.Dead() || h.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	p.mu.Unlock()

	for _, id := range stale {
		p.Release(id)
	}
	return len(stale)
}

// Shutdown releases every process. Used on server exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Release(id)
	}
}

// CommandSpawner runs the configured assistant command, one process per
// conversation, speaking NDJSON over stdin and stdout.
type CommandSpawner struct {
	Command   string
	Args      []string
	StopGrace time.Duration
}

func (s *CommandSpawner) Spawn(conversationID string) (*Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())

	args := append(append([]string{}, s.Args...), "--conversation", conversationID)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Stderr = os.Stderr
	// SIGTERM first so the process can flush state; SIGKILL after the grace
	// period via WaitDelay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.StopGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log := logger.GetLogger()
			log.Warn().
				Err(err).
				Str("conversation_id", conversationID).
				Msg("assistant process exited with error")
		}
		cancel()
	}()

	return NewHandle(conversationID, stdin, stdout, cancel), nil
}
