package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type outboundFrame struct {
	messageType int
	data        []byte
}

// wsTransport adapts a gorilla connection into the hub's Transport. Sends
// enqueue to a bounded channel and never block: a full queue means the peer
// is not draining and the send fails, which the hub treats as death. The
// write pump is the only goroutine that touches the socket for writes and
// also owns the liveness probe ticker.
type wsTransport struct {
	conn *websocket.Conn

	out  chan outboundFrame
	done chan struct{}

	pingInterval time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
}

func newTransport(conn *websocket.Conn, queueSize int, pingInterval, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{
		conn:         conn,
		out:          make(chan outboundFrame, queueSize),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

func (t *wsTransport) Send(msg []byte) error {
	return t.enqueue(websocket.TextMessage, msg)
}

func (t *wsTransport) SendBinary(msg []byte) error {
	return t.enqueue(websocket.BinaryMessage, msg)
}

func (t *wsTransport) enqueue(messageType int, msg []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	select {
	case t.out <- outboundFrame{messageType: messageType, data: msg}:
		return nil
	case <-t.done:
		return ErrTransportClosed
	default:
		return ErrSendQueueFull
	}
}

// Close is idempotent and unblocks both pumps. Closing the socket makes the
// blocked ReadMessage in the receive loop return.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.Close()
	})
	return nil
}

// writePump drains the outbound queue and fires the periodic liveness probe.
// A failed write of either kind is proof of death: the transport closes and
// the receive loop unblocks with an error.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			deadline := time.Now().Add(t.writeTimeout)
			_ = t.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return

		case frame := <-t.out:
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				t.Close()
				return
			}

		case <-ticker.C:
			probe := marshalFrame(pingPongFrame{Type: "ping", Timestamp: time.Now().Unix()})
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(websocket.TextMessage, probe); err != nil {
				t.Close()
				return
			}
		}
	}
}
