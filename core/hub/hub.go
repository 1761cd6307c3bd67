package hub

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Transport delivers messages to one remote peer. Implementations must not
// block: enqueue to an outbound queue or fail immediately. A returned error
// means the peer is unreachable and the hub treats the connection as dead.
type Transport interface {
	Send(msg []byte) error
	SendBinary(msg []byte) error
	Close() error
}

// Connection is the hub's record of one attached client. Connections are
// owned exclusively by the hub: created on Accept, destroyed on Disconnect.
type Connection struct {
	ID           string
	SubjectID    string
	Role         string
	ConnectedAt  time.Time
	LastLiveness time.Time

	transport Transport
}

// Hub tracks live connections, their channel subscriptions, and per-connection
// buffers of events that arrived while the connection was offline. The two
// subscription indices (channel to connections and connection to channels)
// mirror each other and are mutated together under one lock.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	channels map[string]map[string]struct{} // channel -> conn IDs
	subs     map[string]map[string]struct{} // conn ID -> channels
	buffers  map[string]*eventBuffer        // conn ID -> pending events

	maxBuffered int
	logger      *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxBufferedEvents caps the per-connection offline buffer. Overflow
// evicts the oldest event.
func WithMaxBufferedEvents(max int) Option {
	return func(h *Hub) {
		if max > 0 {
			h.maxBuffered = max
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		conns:       make(map[string]*Connection),
		channels:    make(map[string]map[string]struct{}),
		subs:        make(map[string]map[string]struct{}),
		buffers:     make(map[string]*eventBuffer),
		maxBuffered: 100,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Accept registers a connection and flushes any events buffered for its ID,
// in arrival order. If the ID is already registered, the previous owner is
// torn down first; its transport is closed and its subscriptions cleared.
func (h *Hub) Accept(transport Transport, connectionID, subjectID, role string) error {
	if transport == nil {
		return ErrNilTransport
	}
	if connectionID == "" {
		return ErrEmptyConnectionID
	}

	h.mu.Lock()

	if prev, ok := h.conns[connectionID]; ok {
		h.removeLocked(connectionID)
		_ = prev.transport.Close()
		h.logger.Warn("replaced existing connection", slog.String("connection_id", connectionID))
	}

	now := time.Now()
	conn := &Connection{
		ID:           connectionID,
		SubjectID:    subjectID,
		Role:         role,
		ConnectedAt:  now,
		LastLiveness: now,
		transport:    transport,
	}
	h.conns[connectionID] = conn

	var pending [][]byte
	if buf, ok := h.buffers[connectionID]; ok {
		pending = buf.drain()
		delete(h.buffers, connectionID)
	}

	h.mu.Unlock()

	for i, msg := range pending {
		if err := transport.Send(msg); err != nil {
			// The rest of the backlog outlives this transport.
			h.rebuffer(connectionID, pending[i:])
			h.Disconnect(connectionID)
			return err
		}
	}

	h.logger.Info("connection accepted",
		slog.String("connection_id", connectionID),
		slog.String("subject_id", subjectID),
		slog.String("role", role),
		slog.Int("flushed_events", len(pending)))

	return nil
}

// Send delivers msg to one connection. When the connection is offline the
// message lands in its bounded buffer and is flushed on the next Accept.
// A failed transport write tears the connection down and buffers the message.
func (h *Hub) Send(connectionID string, msg []byte) error {
	h.mu.RLock()
	conn, live := h.conns[connectionID]
	h.mu.RUnlock()

	if !live {
		h.buffer(connectionID, msg)
		return nil
	}

	if err := conn.transport.Send(msg); err != nil {
		h.logger.Warn("send failed, disconnecting",
			slog.String("connection_id", connectionID),
			slog.Any("error", err))
		h.Disconnect(connectionID)
		h.buffer(connectionID, msg)
		return err
	}
	return nil
}

// SendBinary delivers a binary frame to one live connection. Binary frames
// are not buffered for offline connections.
func (h *Hub) SendBinary(connectionID string, msg []byte) error {
	h.mu.RLock()
	conn, live := h.conns[connectionID]
	h.mu.RUnlock()

	if !live {
		return ErrConnectionNotFound
	}

	if err := conn.transport.SendBinary(msg); err != nil {
		h.Disconnect(connectionID)
		return err
	}
	return nil
}

// Broadcast sends msg to every live connection except those listed in
// exclude. Failed recipients are disconnected; delivery to the rest
// continues. Returns the number of successful deliveries.
func (h *Hub) Broadcast(msg []byte, exclude ...string) int {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for id, conn := range h.conns {
		if slices.Contains(exclude, id) {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	return h.fanOut(targets, msg)
}

// Publish sends msg to the live subscribers of a channel. A failed send
// disconnects that subscriber without aborting delivery to the rest.
// Returns the number of successful deliveries.
func (h *Hub) Publish(channel string, msg []byte) int {
	h.mu.RLock()
	ids := h.channels[channel]
	targets := make([]*Connection, 0, len(ids))
	for id := range ids {
		if conn, ok := h.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	return h.fanOut(targets, msg)
}

// PublishBinary sends a binary frame to the live subscribers of a channel,
// with the same failure isolation as Publish.
func (h *Hub) PublishBinary(channel string, msg []byte) int {
	h.mu.RLock()
	ids := h.channels[channel]
	targets := make([]*Connection, 0, len(ids))
	for id := range ids {
		if conn, ok := h.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	var dead []string
	for _, conn := range targets {
		if err := conn.transport.SendBinary(msg); err != nil {
			dead = append(dead, conn.ID)
			continue
		}
		delivered++
	}
	for _, id := range dead {
		h.Disconnect(id)
	}
	return delivered
}

func (h *Hub) fanOut(targets []*Connection, msg []byte) int {
	delivered := 0
	var dead []string
	for _, conn := range targets {
		if err := conn.transport.Send(msg); err != nil {
			dead = append(dead, conn.ID)
			continue
		}
		delivered++
	}

	for _, id := range dead {
		h.logger.Warn("fan-out send failed, disconnecting", slog.String("connection_id", id))
		h.Disconnect(id)
	}
	return delivered
}

// Subscribe adds the connection to each channel. Both indices are updated
// together; subscribing to an already-subscribed channel is a no-op.
func (h *Hub) Subscribe(connectionID string, channels ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connectionID]; !ok {
		return ErrConnectionNotFound
	}

	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[string]struct{})
		}
		h.channels[ch][connectionID] = struct{}{}

		if h.subs[connectionID] == nil {
			h.subs[connectionID] = make(map[string]struct{})
		}
		h.subs[connectionID][ch] = struct{}{}
	}
	return nil
}

// Unsubscribe removes the connection from each channel. Unsubscribing from a
// channel the connection is not in is a no-op.
func (h *Hub) Unsubscribe(connectionID string, channels ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connectionID]; !ok {
		return ErrConnectionNotFound
	}

	for _, ch := range channels {
		h.unsubscribeLocked(connectionID, ch)
	}
	return nil
}

func (h *Hub) unsubscribeLocked(connectionID, channel string) {
	if ids, ok := h.channels[channel]; ok {
		delete(ids, connectionID)
		if len(ids) == 0 {
			delete(h.channels, channel)
		}
	}
	if chs, ok := h.subs[connectionID]; ok {
		delete(chs, channel)
		if len(chs) == 0 {
			delete(h.subs, connectionID)
		}
	}
}

// Subscriptions returns the channels the connection is subscribed to, sorted.
func (h *Hub) Subscriptions(connectionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chs := h.subs[connectionID]
	out := make([]string, 0, len(chs))
	for ch := range chs {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// Subscribers returns the connection IDs subscribed to a channel, sorted.
func (h *Hub) Subscribers(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := h.channels[channel]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Connection returns a copy of the connection record.
func (h *Hub) Connection(connectionID string) (Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.conns[connectionID]
	if !ok {
		return Connection{}, false
	}
	c := *conn
	c.transport = nil
	return c, true
}

// MarkLive records a liveness proof (pong receipt) for the connection.
func (h *Hub) MarkLive(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.conns[connectionID]; ok {
		conn.LastLiveness = time.Now()
	}
}

// Disconnect removes the connection from every index and closes its
// transport. The event buffer is preserved so a later Accept under the same
// ID receives what accumulated in between. Unknown IDs are a no-op.
func (h *Hub) Disconnect(connectionID string) {
	h.mu.Lock()
	conn, ok := h.conns[connectionID]
	if ok {
		h.removeLocked(connectionID)
	}
	h.mu.Unlock()

	if ok {
		_ = conn.transport.Close()
		h.logger.Info("connection removed", slog.String("connection_id", connectionID))
	}
}

// removeLocked drops the connection and its subscriptions from both indices.
// Caller holds the write lock.
func (h *Hub) removeLocked(connectionID string) {
	delete(h.conns, connectionID)
	for ch := range h.subs[connectionID] {
		h.unsubscribeLocked(connectionID, ch)
	}
	delete(h.subs, connectionID)
}

func (h *Hub) buffer(connectionID string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[connectionID]
	if !ok {
		buf = newEventBuffer(h.maxBuffered)
		h.buffers[connectionID] = buf
	}
	buf.push(msg)
}

func (h *Hub) rebuffer(connectionID string, msgs [][]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[connectionID]
	if !ok {
		buf = newEventBuffer(h.maxBuffered)
		h.buffers[connectionID] = buf
	}
	for _, msg := range msgs {
		buf.push(msg)
	}
}

// TransferBuffer moves pending events from one connection ID to another,
// keeping their order. Used when a resumed session continues under a fresh
// ID and must claim the backlog of the ID it replaces.
func (h *Hub) TransferBuffer(fromID, toID string) {
	if fromID == toID {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	src, ok := h.buffers[fromID]
	if !ok {
		return
	}
	delete(h.buffers, fromID)

	dst, ok := h.buffers[toID]
	if !ok {
		h.buffers[toID] = src
		return
	}
	for _, msg := range src.drain() {
		dst.push(msg)
	}
}

// DropBuffer discards any events buffered for the connection. Used when a
// reconnection window expires and the backlog can no longer be claimed.
func (h *Hub) DropBuffer(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.buffers, connectionID)
}

// BufferedEvents reports how many events are pending for an offline
// connection.
func (h *Hub) BufferedEvents(connectionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if buf, ok := h.buffers[connectionID]; ok {
		return buf.len()
	}
	return 0
}
