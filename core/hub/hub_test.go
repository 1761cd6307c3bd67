package hub_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventhub/core/hub"
)

// fakeTransport records deliveries and can be flipped to failing mid-test.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	binary  [][]byte
	failing bool
	closed  bool
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sendErr: errors.New("transport down")}
}

func (t *fakeTransport) Send(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return t.sendErr
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) SendBinary(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return t.sendErr
	}
	t.binary = append(t.binary, msg)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failing = true
}

func (t *fakeTransport) messages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func TestHub_Accept(t *testing.T) {
	t.Parallel()

	t.Run("registers connection", func(t *testing.T) {
		h := hub.New()
		tr := newFakeTransport()

		require.NoError(t, h.Accept(tr, "conn-1", "user-1", "member"))

		conn, ok := h.Connection("conn-1")
		require.True(t, ok)
		assert.Equal(t, "user-1", conn.SubjectID)
		assert.Equal(t, "member", conn.Role)
		assert.False(t, conn.ConnectedAt.IsZero())
	})

	t.Run("rejects nil transport", func(t *testing.T) {
		h := hub.New()
		assert.ErrorIs(t, h.Accept(nil, "conn-1", "", "anonymous"), hub.ErrNilTransport)
	})

	t.Run("rejects empty connection id", func(t *testing.T) {
		h := hub.New()
		assert.ErrorIs(t, h.Accept(newFakeTransport(), "", "", "anonymous"), hub.ErrEmptyConnectionID)
	})

	t.Run("replaces previous owner of the id", func(t *testing.T) {
		h := hub.New()
		old := newFakeTransport()
		require.NoError(t, h.Accept(old, "conn-1", "user-1", "member"))
		require.NoError(t, h.Subscribe("conn-1", "orders"))

		replacement := newFakeTransport()
		require.NoError(t, h.Accept(replacement, "conn-1", "user-1", "member"))

		assert.True(t, old.isClosed())
		// Prior subscriptions do not leak onto the replacement.
		assert.Empty(t, h.Subscriptions("conn-1"))
	})

	t.Run("flushes buffered events in order", func(t *testing.T) {
		h := hub.New()

		for i := 0; i < 3; i++ {
			require.NoError(t, h.Send("conn-1", []byte(fmt.Sprintf("event-%d", i))))
		}
		assert.Equal(t, 3, h.BufferedEvents("conn-1"))

		tr := newFakeTransport()
		require.NoError(t, h.Accept(tr, "conn-1", "user-1", "member"))

		got := tr.messages()
		require.Len(t, got, 3)
		for i, msg := range got {
			assert.Equal(t, fmt.Sprintf("event-%d", i), string(msg))
		}
		assert.Zero(t, h.BufferedEvents("conn-1"))
	})
}

func TestHub_SubscriptionIndices(t *testing.T) {
	t.Parallel()

	t.Run("both indices stay mirrored", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "", "anonymous"))
		require.NoError(t, h.Accept(newFakeTransport(), "conn-2", "", "anonymous"))

		require.NoError(t, h.Subscribe("conn-1", "orders", "alerts"))
		require.NoError(t, h.Subscribe("conn-2", "orders"))

		assert.Equal(t, []string{"alerts", "orders"}, h.Subscriptions("conn-1"))
		assert.Equal(t, []string{"orders"}, h.Subscriptions("conn-2"))
		assert.Equal(t, []string{"conn-1", "conn-2"}, h.Subscribers("orders"))
		assert.Equal(t, []string{"conn-1"}, h.Subscribers("alerts"))

		require.NoError(t, h.Unsubscribe("conn-1", "orders"))

		assert.Equal(t, []string{"alerts"}, h.Subscriptions("conn-1"))
		assert.Equal(t, []string{"conn-2"}, h.Subscribers("orders"))
	})

	t.Run("subscribe is idempotent", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "", "anonymous"))

		require.NoError(t, h.Subscribe("conn-1", "orders"))
		require.NoError(t, h.Subscribe("conn-1", "orders"))

		assert.Equal(t, []string{"orders"}, h.Subscriptions("conn-1"))
		assert.Equal(t, []string{"conn-1"}, h.Subscribers("orders"))
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "", "anonymous"))
		require.NoError(t, h.Subscribe("conn-1", "orders"))

		require.NoError(t, h.Unsubscribe("conn-1", "orders"))
		require.NoError(t, h.Unsubscribe("conn-1", "orders"))
		require.NoError(t, h.Unsubscribe("conn-1", "never-subscribed"))

		assert.Empty(t, h.Subscriptions("conn-1"))
	})

	t.Run("unknown connection", func(t *testing.T) {
		h := hub.New()
		assert.ErrorIs(t, h.Subscribe("ghost", "orders"), hub.ErrConnectionNotFound)
		assert.ErrorIs(t, h.Unsubscribe("ghost", "orders"), hub.ErrConnectionNotFound)
	})

	t.Run("disconnect clears both indices", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "", "anonymous"))
		require.NoError(t, h.Subscribe("conn-1", "orders", "alerts"))

		h.Disconnect("conn-1")

		assert.Empty(t, h.Subscriptions("conn-1"))
		assert.Empty(t, h.Subscribers("orders"))
		assert.Empty(t, h.Subscribers("alerts"))
	})
}

func TestHub_Send(t *testing.T) {
	t.Parallel()

	t.Run("delivers to live connection", func(t *testing.T) {
		h := hub.New()
		tr := newFakeTransport()
		require.NoError(t, h.Accept(tr, "conn-1", "", "anonymous"))

		require.NoError(t, h.Send("conn-1", []byte("hello")))

		got := tr.messages()
		require.Len(t, got, 1)
		assert.Equal(t, "hello", string(got[0]))
	})

	t.Run("buffers for offline connection", func(t *testing.T) {
		h := hub.New()

		require.NoError(t, h.Send("offline", []byte("queued")))
		assert.Equal(t, 1, h.BufferedEvents("offline"))
	})

	t.Run("buffer drops oldest at capacity", func(t *testing.T) {
		h := hub.New(hub.WithMaxBufferedEvents(5))

		for i := 0; i < 8; i++ {
			require.NoError(t, h.Send("offline", []byte(fmt.Sprintf("event-%d", i))))
		}
		assert.Equal(t, 5, h.BufferedEvents("offline"))

		tr := newFakeTransport()
		require.NoError(t, h.Accept(tr, "offline", "", "anonymous"))

		got := tr.messages()
		require.Len(t, got, 5)
		// The oldest three were evicted; the most recent window survives in order.
		for i, msg := range got {
			assert.Equal(t, fmt.Sprintf("event-%d", i+3), string(msg))
		}
	})

	t.Run("failed send disconnects and preserves message", func(t *testing.T) {
		h := hub.New()
		tr := newFakeTransport()
		require.NoError(t, h.Accept(tr, "conn-1", "", "anonymous"))
		tr.fail()

		require.Error(t, h.Send("conn-1", []byte("lost?")))

		_, ok := h.Connection("conn-1")
		assert.False(t, ok)
		assert.Equal(t, 1, h.BufferedEvents("conn-1"))
	})

	t.Run("binary requires live connection", func(t *testing.T) {
		h := hub.New()
		assert.ErrorIs(t, h.SendBinary("ghost", []byte{0x01}), hub.ErrConnectionNotFound)
	})
}

func TestHub_Publish(t *testing.T) {
	t.Parallel()

	t.Run("reaches subscribers only", func(t *testing.T) {
		h := hub.New()
		sub := newFakeTransport()
		other := newFakeTransport()
		require.NoError(t, h.Accept(sub, "sub", "", "anonymous"))
		require.NoError(t, h.Accept(other, "other", "", "anonymous"))
		require.NoError(t, h.Subscribe("sub", "orders"))

		n := h.Publish("orders", []byte("event"))

		assert.Equal(t, 1, n)
		assert.Len(t, sub.messages(), 1)
		assert.Empty(t, other.messages())
	})

	t.Run("one dead subscriber does not block the rest", func(t *testing.T) {
		h := hub.New()

		var transports []*fakeTransport
		for i := 0; i < 5; i++ {
			tr := newFakeTransport()
			transports = append(transports, tr)
			id := fmt.Sprintf("conn-%d", i)
			require.NoError(t, h.Accept(tr, id, "", "anonymous"))
			require.NoError(t, h.Subscribe(id, "orders"))
		}
		transports[2].fail()

		n := h.Publish("orders", []byte("event"))

		assert.Equal(t, 4, n)
		for i, tr := range transports {
			if i == 2 {
				continue
			}
			assert.Len(t, tr.messages(), 1, "subscriber %d should receive the event", i)
		}

		// The dead subscriber was removed as a side effect.
		_, ok := h.Connection("conn-2")
		assert.False(t, ok)
		assert.Equal(t, []string{"conn-0", "conn-1", "conn-3", "conn-4"}, h.Subscribers("orders"))
	})

	t.Run("empty channel delivers nothing", func(t *testing.T) {
		h := hub.New()
		assert.Zero(t, h.Publish("void", []byte("event")))
	})

	t.Run("binary fan-out with failure isolation", func(t *testing.T) {
		h := hub.New()
		ok1 := newFakeTransport()
		bad := newFakeTransport()
		ok2 := newFakeTransport()
		for id, tr := range map[string]*fakeTransport{"ok1": ok1, "bad": bad, "ok2": ok2} {
			require.NoError(t, h.Accept(tr, id, "", "anonymous"))
			require.NoError(t, h.Subscribe(id, "media"))
		}
		bad.fail()

		n := h.PublishBinary("media", []byte{0x01, 0x02})

		assert.Equal(t, 2, n)
		_, stillThere := h.Connection("bad")
		assert.False(t, stillThere)
	})
}

func TestHub_TransferBuffer(t *testing.T) {
	t.Parallel()

	t.Run("moves backlog to the new id in order", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Send("old-conn", []byte("first")))
		require.NoError(t, h.Send("old-conn", []byte("second")))

		h.TransferBuffer("old-conn", "new-conn")

		assert.Zero(t, h.BufferedEvents("old-conn"))
		assert.Equal(t, 2, h.BufferedEvents("new-conn"))

		tr := newFakeTransport()
		require.NoError(t, h.Accept(tr, "new-conn", "user-1", "member"))

		got := tr.messages()
		require.Len(t, got, 2)
		assert.Equal(t, "first", string(got[0]))
		assert.Equal(t, "second", string(got[1]))
	})

	t.Run("merges into an existing backlog", func(t *testing.T) {
		h := hub.New()
		require.NoError(t, h.Send("old-conn", []byte("a")))
		require.NoError(t, h.Send("new-conn", []byte("b")))

		h.TransferBuffer("old-conn", "new-conn")

		assert.Equal(t, 2, h.BufferedEvents("new-conn"))
	})

	t.Run("no-op on unknown source or same id", func(t *testing.T) {
		h := hub.New()
		h.TransferBuffer("ghost", "other")
		h.TransferBuffer("same", "same")
		assert.Zero(t, h.BufferedEvents("other"))
	})
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	h := hub.New()
	a := newFakeTransport()
	b := newFakeTransport()
	c := newFakeTransport()
	require.NoError(t, h.Accept(a, "a", "", "anonymous"))
	require.NoError(t, h.Accept(b, "b", "", "anonymous"))
	require.NoError(t, h.Accept(c, "c", "", "anonymous"))

	n := h.Broadcast([]byte("all"), "b")

	assert.Equal(t, 2, n)
	assert.Len(t, a.messages(), 1)
	assert.Empty(t, b.messages())
	assert.Len(t, c.messages(), 1)
}

func TestHub_Stats(t *testing.T) {
	t.Parallel()

	h := hub.New()
	require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "user-1", "member"))
	require.NoError(t, h.Accept(newFakeTransport(), "conn-2", "", "anonymous"))
	require.NoError(t, h.Subscribe("conn-1", "orders", "alerts"))
	require.NoError(t, h.Subscribe("conn-2", "orders"))
	require.NoError(t, h.Send("offline", []byte("queued")))

	stats := h.Stats()

	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 3, stats.Subscriptions)
	assert.Equal(t, 1, stats.BufferedEvents)
	require.Len(t, stats.Details, 2)
	assert.Equal(t, "conn-1", stats.Details[0].ID)
	assert.Equal(t, []string{"alerts", "orders"}, stats.Details[0].Channels)
	assert.Equal(t, "anonymous", stats.Details[1].Role)
}

func TestHub_MarkLive(t *testing.T) {
	t.Parallel()

	h := hub.New()
	require.NoError(t, h.Accept(newFakeTransport(), "conn-1", "", "anonymous"))

	before, ok := h.Connection("conn-1")
	require.True(t, ok)

	h.MarkLive("conn-1")

	after, ok := h.Connection("conn-1")
	require.True(t, ok)
	assert.GreaterOrEqual(t, after.LastLiveness.UnixNano(), before.LastLiveness.UnixNano())

	// Unknown ID must not panic.
	h.MarkLive("ghost")
}

func TestHub_ConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping race condition test in short mode")
	}

	t.Parallel()

	h := hub.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			ch := fmt.Sprintf("channel-%d", i%4)

			_ = h.Accept(newFakeTransport(), id, "", "anonymous")
			_ = h.Subscribe(id, ch)
			h.Publish(ch, []byte("event"))
			_ = h.Send(id, []byte("direct"))
			h.MarkLive(id)
			_ = h.Unsubscribe(id, ch)
			h.Disconnect(id)
		}(i)
	}
	wg.Wait()

	stats := h.Stats()
	assert.Zero(t, stats.Connections)
	assert.Zero(t, stats.Subscriptions)
}
