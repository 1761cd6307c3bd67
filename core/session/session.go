package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/eventhub/core/hub"
	"github.com/dmitrymomot/eventhub/core/logger"
	"github.com/dmitrymomot/eventhub/pkg/frame"
	"github.com/dmitrymomot/eventhub/pkg/permission"
	"github.com/dmitrymomot/eventhub/pkg/ratelimiter"
	"github.com/dmitrymomot/eventhub/pkg/reconnect"
)

// Session drives one physical connection: it owns the receive loop, applies
// rate limits and permission checks to every inbound message, and tears the
// connection down when the transport dies.
type Session struct {
	id        string
	subjectID string
	role      string

	hub       *hub.Hub
	gate      *permission.Gate
	limiter   *ratelimiter.Limiter
	reconnect *reconnect.Store
	transport *wsTransport
	logger    *slog.Logger

	teardownOnce sync.Once
}

// ID returns the session's connection ID.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) authenticated() bool {
	return s.subjectID != ""
}

// limiterKey identifies the client for rate limiting. Authenticated clients
// are keyed by subject so their budget survives reconnects; anonymous
// clients are keyed by connection ID and reset on disconnect.
func (s *Session) limiterKey() string {
	if s.authenticated() {
		return "subject:" + s.subjectID
	}
	return "conn:" + s.id
}

// run is the receive loop. It exits only when the transport dies, which is
// the single fatal condition a session recognizes.
func (s *Session) run(conn *websocket.Conn) {
	defer s.teardown()

	conn.SetPongHandler(func(string) error {
		s.hub.MarkLive(s.id)
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("connection read failed",
					logger.ConnectionID(s.id),
					logger.Error(err))
			}
			return
		}

		s.hub.MarkLive(s.id)

		switch messageType {
		case websocket.TextMessage:
			s.dispatchControl(data)
		case websocket.BinaryMessage:
			s.dispatchBinary(data)
		}
	}
}

// dispatchControl handles one inbound JSON frame. A panic while handling is
// contained here and downgraded to a protocol error so the loop survives.
func (s *Session) dispatchControl(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in message handler",
				logger.ConnectionID(s.id),
				slog.Any("panic", r))
			s.sendError("internal error handling message", 0)
		}
	}()

	msg, err := parseInbound(data)
	if err != nil {
		s.sendError("malformed message", 0)
		return
	}

	if !s.allow(msg.kind()) {
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		s.handleSubscribe(msg.Channels)
	case TypeUnsubscribe:
		s.handleUnsubscribe(msg.Channels)
	case TypePing:
		s.send(marshalFrame(pingPongFrame{Type: "pong", Timestamp: time.Now().Unix()}))
	case TypeGetSubscriptions:
		s.send(marshalFrame(subscriptionsFrame{
			Type:     "subscriptions",
			Channels: s.hub.Subscriptions(s.id),
		}))
	case TypeGetReconnectionToken:
		s.handleReconnectionToken()
	default:
		s.sendError("unknown message type: "+msg.Type, 0)
	}
}

// allow checks the rate limit for one message kind. Denied messages are
// dropped after an error frame with a retry hint; the connection continues.
func (s *Session) allow(kind string) bool {
	if s.limiter == nil {
		return true
	}

	result, err := s.limiter.Check(context.Background(), s.limiterKey(), kind)
	if err != nil {
		// A broken limiter backend must not take the connection down.
		s.logger.Error("rate limit check failed",
			logger.ConnectionID(s.id),
			logger.Error(err))
		return true
	}
	if !result.Allowed {
		s.sendError("rate limit exceeded", result.RetryAfter)
		return false
	}
	return true
}

func (s *Session) handleSubscribe(channels []string) {
	var granted, denied []string
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if s.gate != nil && !s.gate.CanSubscribe(ch, s.role) {
			denied = append(denied, ch)
			continue
		}
		granted = append(granted, ch)
	}

	if len(granted) > 0 {
		if err := s.hub.Subscribe(s.id, granted...); err != nil {
			s.logger.Warn("subscribe failed",
				logger.ConnectionID(s.id),
				logger.Error(err))
			return
		}
	}

	s.send(marshalFrame(subscribedFrame{
		Type:     "subscribed",
		Channels: granted,
		Denied:   denied,
	}))
}

func (s *Session) handleUnsubscribe(channels []string) {
	if err := s.hub.Unsubscribe(s.id, channels...); err != nil {
		s.logger.Warn("unsubscribe failed",
			logger.ConnectionID(s.id),
			logger.Error(err))
		return
	}
	s.send(marshalFrame(unsubscribedFrame{Type: "unsubscribed", Channels: channels}))
}

func (s *Session) handleReconnectionToken() {
	if s.reconnect == nil {
		s.sendError("reconnection not supported", 0)
		return
	}
	if !s.authenticated() {
		s.sendError("reconnection tokens require authentication", 0)
		return
	}

	token, err := s.reconnect.Issue(s.id, s.subjectID, s.hub.Subscriptions(s.id), map[string]any{
		"role": s.role,
	})
	if err != nil {
		s.logger.Error("token issue failed",
			logger.ConnectionID(s.id),
			logger.Error(err))
		s.sendError("could not issue reconnection token", 0)
		return
	}

	s.send(marshalFrame(reconnectionTokenFrame{
		Type:      "reconnection_token",
		Token:     token,
		ExpiresIn: int64(s.reconnect.TTL().Seconds()),
	}))
}

// dispatchBinary validates an out-of-band binary frame. COMPRESSED_JSON
// frames are unwrapped and dispatched as control messages; other valid types
// are redistributed to the channel named in their metadata when the role may
// broadcast there.
func (s *Session) dispatchBinary(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in binary handler",
				logger.ConnectionID(s.id),
				slog.Any("panic", r))
			s.sendError("internal error handling payload", 0)
		}
	}()

	if !s.allow(kindBinary) {
		return
	}

	f, err := frame.Unpack(data)
	if err != nil {
		s.sendError("invalid binary frame: "+err.Error(), 0)
		return
	}

	if f.Type == frame.TypeCompressedJSON {
		body, err := frame.DecodeCompressedJSONFrame(f)
		if err != nil {
			s.sendError("invalid compressed payload: "+err.Error(), 0)
			return
		}
		s.dispatchControl(body)
		return
	}

	channel, _ := f.Metadata["channel"].(string)
	if channel == "" {
		s.sendError("binary payload missing channel metadata", 0)
		return
	}
	if s.gate != nil && !s.gate.CanBroadcast(channel, s.role) {
		s.sendError("not permitted to broadcast on "+channel, 0)
		return
	}

	s.hub.PublishBinary(channel, data)
}

func (s *Session) send(data []byte) {
	if err := s.hub.Send(s.id, data); err != nil {
		s.logger.Warn("send failed",
			logger.ConnectionID(s.id),
			logger.Error(err))
	}
}

func (s *Session) sendError(message string, retryAfter time.Duration) {
	ef := errorFrame{Type: "error", Message: message}
	if retryAfter > 0 {
		ef.RetryAfter = math.Ceil(retryAfter.Seconds()*1000) / 1000
	}
	s.send(marshalFrame(ef))
}

// teardown runs once per session, on the only fatal path: a dead transport.
// Order matters: the probe ticker stops with the transport, authenticated
// state is snapshotted before the hub forgets the subscriptions, and
// connection-keyed rate buckets are cleared last.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.transport.Close()

		if s.authenticated() && s.reconnect != nil {
			channels := s.hub.Subscriptions(s.id)
			metadata := map[string]any{"role": s.role}
			// A token the client already fetched keeps working; only its
			// snapshot is brought up to date.
			if !s.reconnect.Refresh(s.id, channels, metadata) {
				if _, err := s.reconnect.Issue(s.id, s.subjectID, channels, metadata); err != nil {
					s.logger.Error("snapshot on teardown failed",
						logger.ConnectionID(s.id),
						logger.SubjectID(s.subjectID),
						logger.Error(err))
				}
			}
		}

		s.hub.Disconnect(s.id)

		if s.limiter != nil && !s.authenticated() {
			if err := s.limiter.Reset(context.Background(), s.limiterKey()); err != nil {
				s.logger.Warn("rate bucket reset failed",
					logger.ConnectionID(s.id),
					logger.Error(err))
			}
		}

		s.logger.Info("session closed",
			logger.ConnectionID(s.id),
			logger.SubjectID(s.subjectID),
			logger.Role(s.role))
	})
}
