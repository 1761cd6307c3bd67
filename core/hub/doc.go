// Package hub tracks websocket connections and fans events out to them by
// channel.
//
// The hub owns every Connection: sessions hand a Transport to Accept and get
// delivery, subscription bookkeeping, and offline buffering in return.
// Subscription state lives in two mirrored indices (channel to connections,
// connection to channels) mutated together under one lock, so readers on
// either axis always agree.
//
// Delivery is best-effort and isolated: a subscriber whose transport fails is
// disconnected as a side effect of Publish or Broadcast while the remaining
// recipients still get the message. Events sent to an offline connection land
// in a bounded drop-oldest buffer keyed by connection ID and are flushed in
// order when that ID reattaches, which is how reconnection resumes a client's
// event stream.
//
// Typical wiring:
//
//	h := hub.New(hub.WithMaxBufferedEvents(100))
//
//	// session layer, after the websocket upgrade:
//	err := h.Accept(transport, connID, subjectID, role)
//	err = h.Subscribe(connID, "orders", "alerts")
//
//	// publisher side:
//	n := h.Publish("orders", payload)
//
// All methods are safe for concurrent use.
package hub
