package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/process"
)

type mockStore struct {
	appendErr error
	appended  []string
	touched   int
}

func (m *mockStore) AppendMessage(_ context.Context, _ *conversation.Conversation, role conversation.MessageRole, content string) (*conversation.Message, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.appended = append(m.appended, content)
	return &conversation.Message{PublicID: "msg_reply", Role: role, Content: content}, nil
}

func (m *mockStore) Touch(_ context.Context, _ *conversation.Conversation) error {
	m.touched++
	return nil
}

func newTestHandle(t *testing.T) (*process.Handle, *io.PipeWriter) {
	t.Helper()
	stdoutR, stdoutW := io.Pipe()
	h := process.NewHandle("conv_1", io.Discard, stdoutR, func() { stdoutW.Close() })
	t.Cleanup(h.Close)
	return h, stdoutW
}

// emit returns a start callback that writes the given stdout lines once the
// relay's subscription is live, so no event can be dropped before it attaches.
func emit(w *io.PipeWriter, lines ...string) func() error {
	return func() error {
		go func() {
			for _, line := range lines {
				if _, err := w.Write([]byte(line + "\n")); err != nil {
					return
				}
			}
		}()
		return nil
	}
}

func TestStreamForwardsTextAndPersistsOnDone(t *testing.T) {
	handle, stdout := newTestHandle(t)
	store := &mockStore{}
	r := New(store, 8)
	rec := httptest.NewRecorder()
	conv := &conversation.Conversation{PublicID: "conv_1"}

	require.NoError(t, r.Stream(context.Background(), rec, handle, conv, emit(stdout,
		`{"type":"text","content":"Hello, "}`,
		`{"type":"text","content":"world."}`,
		`{"type":"done"}`,
	)))

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"type":"text","content":"Hello, "}`)
	assert.Contains(t, body, `data: {"type":"text","content":"world."}`)
	assert.Contains(t, body, `data: {"type":"done","messageId":"msg_reply"}`)

	require.Len(t, store.appended, 1)
	assert.Equal(t, "Hello, world.", store.appended[0])
	assert.Equal(t, 1, store.touched)
}

func TestStreamErrorEventSkipsPersistence(t *testing.T) {
	handle, stdout := newTestHandle(t)
	store := &mockStore{}
	r := New(store, 8)
	rec := httptest.NewRecorder()

	require.NoError(t, r.Stream(context.Background(), rec, handle, &conversation.Conversation{PublicID: "conv_1"}, emit(stdout,
		`{"type":"text","content":"partial"}`,
		`{"type":"error","error":"model backend unavailable"}`,
	)))

	assert.Contains(t, rec.Body.String(), `data: {"type":"error","error":"model backend unavailable"}`)
	assert.NotContains(t, rec.Body.String(), `"type":"done"`)
	assert.Empty(t, store.appended)
}

func TestStreamPersistFailureEmitsErrorFrame(t *testing.T) {
	handle, stdout := newTestHandle(t)
	store := &mockStore{appendErr: errors.New("database down")}
	r := New(store, 8)
	rec := httptest.NewRecorder()

	require.NoError(t, r.Stream(context.Background(), rec, handle, &conversation.Conversation{PublicID: "conv_1"}, emit(stdout,
		`{"type":"text","content":"the reply"}`,
		`{"type":"done"}`,
	)))

	assert.Contains(t, rec.Body.String(), `"type":"error"`)
	assert.NotContains(t, rec.Body.String(), `"type":"done"`)
	assert.Equal(t, 0, store.touched)
}

func TestStreamProcessCrashDeliversErrorFrame(t *testing.T) {
	handle, stdout := newTestHandle(t)
	store := &mockStore{}
	r := New(store, 8)
	rec := httptest.NewRecorder()

	start := func() error {
		go func() {
			stdout.Write([]byte(`{"type":"text","content":"half a"}` + "\n"))
			stdout.Close()
		}()
		return nil
	}

	require.NoError(t, r.Stream(context.Background(), rec, handle, &conversation.Conversation{PublicID: "conv_1"}, start))

	assert.Contains(t, rec.Body.String(), `"type":"error"`)
	assert.Empty(t, store.appended)
}

// safeRecorder lets the test read the body while the relay goroutine is
// still writing.
type safeRecorder struct {
	mu   sync.Mutex
	body strings.Builder
}

func (s *safeRecorder) Header() http.Header { return http.Header{} }
func (s *safeRecorder) WriteHeader(int)     {}

func (s *safeRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.Write(p)
}

func (s *safeRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.String()
}

func TestStreamClientDisconnectLeavesProcessRunning(t *testing.T) {
	handle, stdout := newTestHandle(t)
	store := &mockStore{}
	r := New(store, 8)
	rec := &safeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Stream(ctx, rec, handle, &conversation.Conversation{PublicID: "conv_1"},
			emit(stdout, `{"type":"text","content":"before disconnect"}`))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "before disconnect")
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.False(t, handle.Dead())
	assert.Empty(t, store.appended)
}

func TestStreamOnDeadHandleReportsError(t *testing.T) {
	handle, stdout := newTestHandle(t)
	stdout.Close()
	require.Eventually(t, handle.Dead, time.Second, 5*time.Millisecond)

	store := &mockStore{}
	r := New(store, 8)
	rec := httptest.NewRecorder()

	require.NoError(t, r.Stream(context.Background(), rec, handle, &conversation.Conversation{PublicID: "conv_1"}, nil))
	assert.Contains(t, rec.Body.String(), "assistant process is not available")
}

func TestStreamSendFailureEmitsErrorFrame(t *testing.T) {
	handle, _ := newTestHandle(t)
	store := &mockStore{}
	r := New(store, 8)
	rec := httptest.NewRecorder()

	err := r.Stream(context.Background(), rec, handle, &conversation.Conversation{PublicID: "conv_1"}, func() error {
		return errors.New("broken pipe")
	})
	require.NoError(t, err)

	assert.Contains(t, rec.Body.String(), "failed to reach assistant process")
	assert.Empty(t, store.appended)
}
