// Package session runs the per-connection protocol loop on top of core/hub.
//
// Handler upgrades HTTP requests with gorilla/websocket and gives every
// connection two goroutines: a receive loop that parses, rate-limits, and
// permission-checks inbound frames, and a write pump that drains the
// outbound queue and fires a periodic liveness probe. A failed probe write
// is proof of death and the only fatal condition; protocol mistakes, denied
// permissions, and rate-limit hits are answered with error frames while the
// connection continues.
//
// Connection establishment accepts two optional query/header inputs: a
// bearer credential, resolved by the injected Authenticator, and a
// reconnect_token, redeemed against the reconnection store. Both fail soft:
// a bad credential or stale token yields a fresh anonymous connection, never
// a rejected handshake. A successful resume claims the buffered events of
// the connection it replaces and restores its subscriptions.
//
// Wiring:
//
//	h := hub.New()
//	mux.Handle("/ws", session.Handler(h,
//		session.WithAuthenticator(authn),
//		session.WithPermissionGate(gate),
//		session.WithRateLimiter(limiter),
//		session.WithReconnectionStore(tokens),
//		session.WithAllowAnyOrigin(),
//	))
//
// Publishers push events through the hub directly:
//
//	data, _ := session.NewEvent("orders", "order.created", payload).Encode()
//	h.Publish("orders", data)
package session
