package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message types. The set is closed: anything else is dispatched as
// unknown and answered with an error frame.
const (
	TypeSubscribe            = "subscribe"
	TypeUnsubscribe          = "unsubscribe"
	TypePing                 = "ping"
	TypeGetSubscriptions     = "get_subscriptions"
	TypeGetReconnectionToken = "get_reconnection_token"

	kindUnknown = "unknown"
	kindBinary  = "binary"
)

type inboundMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

func parseInbound(data []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.Type == "" {
		return inboundMessage{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return msg, nil
}

// kind returns the rate-limit bucket name for the message.
func (m inboundMessage) kind() string {
	switch m.Type {
	case TypeSubscribe, TypeUnsubscribe, TypePing, TypeGetSubscriptions, TypeGetReconnectionToken:
		return m.Type
	default:
		return kindUnknown
	}
}

type connectedFrame struct {
	Type        string `json:"type"`
	ClientID    string `json:"client_id"`
	Reconnected bool   `json:"reconnected"`
}

type subscribedFrame struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Denied   []string `json:"denied,omitempty"`
}

type unsubscribedFrame struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

type pingPongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type subscriptionsFrame struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

type reconnectionTokenFrame struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type errorFrame struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

func marshalFrame(frame any) []byte {
	data, err := json.Marshal(frame)
	if err != nil {
		// All frame types marshal; reaching this is a programming error.
		return []byte(`{"type":"error","message":"internal encoding failure"}`)
	}
	return data
}

// Event is a channel event as delivered to subscribers. Unlike control
// frames it carries no "type" key; the "channel" key identifies it.
type Event struct {
	Channel   string         `json:"channel"`
	EventType string         `json:"event_type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(channel, eventType string, data map[string]any) Event {
	return Event{
		Channel:   channel,
		EventType: eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// Encode serializes the event for hub delivery.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
