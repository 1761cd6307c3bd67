package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/eventhub/core/hub"
	"github.com/dmitrymomot/eventhub/core/logger"
	"github.com/dmitrymomot/eventhub/pkg/clientip"
	"github.com/dmitrymomot/eventhub/pkg/permission"
	"github.com/dmitrymomot/eventhub/pkg/ratelimiter"
	"github.com/dmitrymomot/eventhub/pkg/reconnect"
)

// Authenticator resolves a bearer credential to an identity. The session
// layer never inspects credential internals; it forwards the opaque string
// and uses only the returned subject and role.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (subjectID, role string, err error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, credential string) (string, string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, credential string) (string, string, error) {
	return f(ctx, credential)
}

type handlerConfig struct {
	upgrader       *websocket.Upgrader
	responseHeader http.Header

	authenticator Authenticator
	gate          *permission.Gate
	limiter       *ratelimiter.Limiter
	store         *reconnect.Store

	pingInterval   time.Duration
	writeTimeout   time.Duration
	sendQueueSize  int
	maxMessageSize int64

	logger *slog.Logger
}

// Option configures the websocket handler.
type Option func(*handlerConfig)

// WithAuthenticator sets the external identity collaborator. Without one,
// every connection is anonymous.
func WithAuthenticator(a Authenticator) Option {
	return func(c *handlerConfig) {
		c.authenticator = a
	}
}

// WithPermissionGate sets the role-based channel access table. A nil gate
// permits everything.
func WithPermissionGate(g *permission.Gate) Option {
	return func(c *handlerConfig) {
		c.gate = g
	}
}

// WithRateLimiter sets the per-message-kind limiter. A nil limiter disables
// rate limiting.
func WithRateLimiter(l *ratelimiter.Limiter) Option {
	return func(c *handlerConfig) {
		c.limiter = l
	}
}

// WithReconnectionStore enables one-time reconnection tokens.
func WithReconnectionStore(s *reconnect.Store) Option {
	return func(c *handlerConfig) {
		c.store = s
	}
}

// WithPingInterval sets the liveness probe period.
func WithPingInterval(interval time.Duration) Option {
	return func(c *handlerConfig) {
		if interval > 0 {
			c.pingInterval = interval
		}
	}
}

// WithWriteTimeout sets the per-write deadline on the socket.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *handlerConfig) {
		if timeout > 0 {
			c.writeTimeout = timeout
		}
	}
}

// WithSendQueueSize sets the outbound queue depth per connection. A client
// that lets the queue fill is treated as dead.
func WithSendQueueSize(size int) Option {
	return func(c *handlerConfig) {
		if size > 0 {
			c.sendQueueSize = size
		}
	}
}

// WithMaxMessageSize caps inbound message size in bytes.
func WithMaxMessageSize(size int64) Option {
	return func(c *handlerConfig) {
		if size > 0 {
			c.maxMessageSize = size
		}
	}
}

// WithLogger sets the logger for session activity.
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReadBuffer sets the upgrader's read buffer size.
func WithReadBuffer(size int) Option {
	return func(c *handlerConfig) {
		c.upgrader.ReadBufferSize = size
	}
}

// WithWriteBuffer sets the upgrader's write buffer size.
func WithWriteBuffer(size int) Option {
	return func(c *handlerConfig) {
		c.upgrader.WriteBufferSize = size
	}
}

// WithHandshakeTimeout sets the upgrade handshake timeout.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *handlerConfig) {
		c.upgrader.HandshakeTimeout = timeout
	}
}

// WithOriginCheck sets a custom origin check on the upgrader.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(c *handlerConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

// WithAllowAnyOrigin disables origin checking.
func WithAllowAnyOrigin() Option {
	return func(c *handlerConfig) {
		c.upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

// WithSubprotocols sets the supported subprotocols.
func WithSubprotocols(protocols ...string) Option {
	return func(c *handlerConfig) {
		c.upgrader.Subprotocols = protocols
	}
}

// WithUpgradeHeaders sets extra headers on the upgrade response.
func WithUpgradeHeaders(header http.Header) Option {
	return func(c *handlerConfig) {
		c.responseHeader = header
	}
}

// Handler returns the websocket endpoint for the hub. Each upgraded
// connection gets its own Session and write pump; ServeHTTP blocks for the
// lifetime of the connection, as gorilla handlers do.
func Handler(h *hub.Hub, opts ...Option) http.Handler {
	cfg := &handlerConfig{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval:   30 * time.Second,
		writeTimeout:   10 * time.Second,
		sendQueueSize:  256,
		maxMessageSize: 1 << 20,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerCredential(r)
		reconnectToken := r.URL.Query().Get("reconnect_token")

		conn, err := cfg.upgrader.Upgrade(w, r, cfg.responseHeader)
		if err != nil {
			cfg.logger.Warn("upgrade failed", logger.Error(err))
			return
		}
		if cfg.maxMessageSize > 0 {
			conn.SetReadLimit(cfg.maxMessageSize)
		}

		connID := uuid.NewString()
		subjectID, role := cfg.authenticate(r.Context(), credential)

		// An invalid or expired token falls back to a fresh anonymous
		// connection; the handshake itself never fails.
		var resumed *reconnect.Snapshot
		if reconnectToken != "" && cfg.store != nil {
			if snapshot, ok := cfg.store.Resume(reconnectToken, connID); ok {
				resumed = &snapshot
				if subjectID == "" {
					subjectID = snapshot.SubjectID
					if saved, ok := snapshot.Metadata["role"].(string); ok && saved != "" {
						role = saved
					}
				}
			}
		}

		transport := newTransport(conn, cfg.sendQueueSize, cfg.pingInterval, cfg.writeTimeout)
		go transport.writePump()

		// The connected frame goes out first, ahead of any backlog the
		// Accept below flushes.
		if err := transport.Send(marshalFrame(connectedFrame{
			Type:        "connected",
			ClientID:    connID,
			Reconnected: resumed != nil,
		})); err != nil {
			cfg.logger.Warn("handshake send failed",
				logger.ConnectionID(connID),
				logger.Error(err))
			transport.Close()
			return
		}

		if resumed != nil {
			h.TransferBuffer(resumed.PreviousConnectionID, connID)
		}

		if err := h.Accept(transport, connID, subjectID, role); err != nil {
			cfg.logger.Warn("accept failed",
				logger.ConnectionID(connID),
				logger.Error(err))
			transport.Close()
			return
		}

		sess := &Session{
			id:        connID,
			subjectID: subjectID,
			role:      role,
			hub:       h,
			gate:      cfg.gate,
			limiter:   cfg.limiter,
			reconnect: cfg.store,
			transport: transport,
			logger:    cfg.logger,
		}

		if resumed != nil && len(resumed.Channels) > 0 {
			if err := h.Subscribe(connID, resumed.Channels...); err != nil {
				cfg.logger.Warn("resubscribe failed",
					logger.ConnectionID(connID),
					logger.Error(err))
			}
		}

		cfg.logger.Info("session started",
			logger.ConnectionID(connID),
			logger.SubjectID(subjectID),
			logger.Role(role),
			slog.String("client_ip", clientip.GetIP(r)),
			slog.Bool("reconnected", resumed != nil))

		sess.run(conn)
	})
}

// authenticate resolves the credential, falling back to anonymous on any
// failure.
func (c *handlerConfig) authenticate(ctx context.Context, credential string) (string, string) {
	if credential == "" || c.authenticator == nil {
		return "", permission.DefaultRole
	}

	subjectID, role, err := c.authenticator.Authenticate(ctx, credential)
	if err != nil || subjectID == "" {
		c.logger.Warn("authentication failed, continuing anonymously", logger.Error(err))
		return "", permission.DefaultRole
	}
	if role == "" {
		role = permission.DefaultRole
	}
	return subjectID, role
}

// bearerCredential extracts the optional credential from the Authorization
// header or the token query parameter.
func bearerCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}
