package process

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/infrastructure/metrics"
)

// stubSpawner builds handles over in-memory pipes so tests never fork a real
// process.
type stubSpawner struct {
	mu      sync.Mutex
	spawns  int32
	writers map[string]*io.PipeWriter
	delay   time.Duration
}

func newStubSpawner() *stubSpawner {
	return &stubSpawner{writers: make(map[string]*io.PipeWriter)}
}

func (s *stubSpawner) Spawn(conversationID string) (*Handle, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	atomic.AddInt32(&s.spawns, 1)

	stdoutR, stdoutW := io.Pipe()
	s.mu.Lock()
	s.writers[conversationID] = stdoutW
	s.mu.Unlock()

	terminate := func() { stdoutW.Close() }
	return NewHandle(conversationID, io.Discard, stdoutR, terminate), nil
}

func (s *stubSpawner) count() int32 {
	return atomic.LoadInt32(&s.spawns)
}

func TestAcquireSpawnsOncePerConversation(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, time.Minute)
	defer pool.Shutdown()

	first, err := pool.Acquire("conv_1")
	require.NoError(t, err)
	second, err := pool.Acquire("conv_1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, spawner.count())
}

func TestConcurrentAcquireCollapsesIntoSingleSpawn(t *testing.T) {
	spawner := newStubSpawner()
	spawner.delay = 20 * time.Millisecond
	pool := NewPool(spawner, time.Minute)
	defer pool.Shutdown()

	const callers = 16
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := pool.Acquire("conv_1")
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, spawner.count())
	for i := 1; i < callers; i++ {
		assert.Same(t, handles[0], handles[i])
	}
}

func TestAcquireSpawnsPerConversation(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, time.Minute)
	defer pool.Shutdown()

	_, err := pool.Acquire("conv_1")
	require.NoError(t, err)
	_, err = pool.Acquire("conv_2")
	require.NoError(t, err)

	assert.EqualValues(t, 2, spawner.count())
}

func TestReleaseStopsProcess(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, time.Minute)

	h, err := pool.Acquire("conv_1")
	require.NoError(t, err)

	pool.Release("conv_1")
	assert.Eventually(t, h.Dead, time.Second, 5*time.Millisecond)

	// Releasing again, or a conversation that never had a process, is fine.
	pool.Release("conv_1")
	pool.Release("conv_never")
}

func TestAcquireReplacesDeadHandle(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, time.Minute)
	defer pool.Shutdown()

	first, err := pool.Acquire("conv_1")
	require.NoError(t, err)

	spawner.mu.Lock()
	spawner.writers["conv_1"].Close()
	spawner.mu.Unlock()
	require.Eventually(t, first.Dead, time.Second, 5*time.Millisecond)

	second, err := pool.Acquire("conv_1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, spawner.count())
}

func TestReapIdleReleasesStaleProcesses(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, 10*time.Minute)

	now := time.Now()
	pool.now = func() time.Time { return now }

	fresh, err := pool.Acquire("conv_fresh")
	require.NoError(t, err)
	stale, err := pool.Acquire("conv_stale")
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastActive = now.Add(-11 * time.Minute)
	stale.mu.Unlock()

	assert.Equal(t, 1, pool.ReapIdle())
	assert.Eventually(t, stale.Dead, time.Second, 5*time.Millisecond)
	assert.False(t, fresh.Dead())

	pool.Shutdown()
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	h := NewHandle("conv_1", io.Discard, stdoutR, func() { stdoutW.Close() })

	id, events := h.Subscribe(8)
	defer h.Unsubscribe(id)

	go func() {
		stdoutW.Write([]byte(`{"type":"text","content":"Hel"}` + "\n"))
		stdoutW.Write([]byte(`{"type":"text","content":"lo"}` + "\n"))
		stdoutW.Write([]byte(`{"type":"done"}` + "\n"))
	}()

	assert.Equal(t, StreamEvent{Type: EventText, Content: "Hel"}, <-events)
	assert.Equal(t, StreamEvent{Type: EventText, Content: "lo"}, <-events)
	assert.Equal(t, StreamEvent{Type: EventDone}, <-events)

	h.Close()
}

func TestProcessExitDeliversErrorEvent(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	h := NewHandle("conv_1", io.Discard, stdoutR, func() { stdoutW.Close() })

	id, events := h.Subscribe(8)
	defer h.Unsubscribe(id)

	stdoutW.Close()

	event := <-events
	assert.Equal(t, EventError, event.Type)
	assert.NotEmpty(t, event.Error)

	_, open := <-events
	assert.False(t, open)
	assert.True(t, h.Dead())
}

func TestActiveGaugeStableAcrossReplacement(t *testing.T) {
	spawner := newStubSpawner()
	pool := NewPool(spawner, time.Minute)

	base := testutil.ToFloat64(metrics.ProcessesActive)

	first, err := pool.Acquire("conv_1")
	require.NoError(t, err)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.ProcessesActive))

	spawner.mu.Lock()
	spawner.writers["conv_1"].Close()
	spawner.mu.Unlock()
	require.Eventually(t, first.Dead, time.Second, 5*time.Millisecond)

	// The replacement takes over the dead handle's gauge slot.
	_, err = pool.Acquire("conv_1")
	require.NoError(t, err)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.ProcessesActive))

	pool.Shutdown()
	assert.Equal(t, base, testutil.ToFloat64(metrics.ProcessesActive))
}

func TestUnsubscribeUnblocksStalledDelivery(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	h := NewHandle("conv_1", io.Discard, stdoutR, func() { stdoutW.Close() })
	defer h.Close()

	id, _ := h.Subscribe(1)

	// The first event fills the listener buffer; nobody is receiving, so
	// delivery of the second stalls.
	stdoutW.Write([]byte(`{"type":"text","content":"a"}` + "\n"))
	stdoutW.Write([]byte(`{"type":"text","content":"b"}` + "\n"))
	time.Sleep(50 * time.Millisecond)

	unsubscribed := make(chan struct{})
	go func() {
		h.Unsubscribe(id)
		close(unsubscribed)
	}()
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe blocked behind a stalled delivery")
	}

	// The handle stays usable while a delivery is (or was) stalled.
	sent := make(chan error, 1)
	go func() { sent <- h.Send("next") }()
	select {
	case err := <-sent:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Send blocked behind a stalled delivery")
	}
}

func TestUnsubscribeLeavesProcessRunning(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	h := NewHandle("conv_1", io.Discard, stdoutR, func() { stdoutW.Close() })
	defer h.Close()

	id, _ := h.Subscribe(1)
	h.Unsubscribe(id)

	// Fanout with no listeners must not block the reader.
	stdoutW.Write([]byte(`{"type":"text","content":"x"}` + "\n"))
	assert.False(t, h.Dead())
}
