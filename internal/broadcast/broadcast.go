// Package broadcast is the pub/sub transport behind the notification channels: named channels,
// named events bound per channel, one long-lived connection per client.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrClosed = errors.New("broadcast: connection closed")

// Message is an undecoded event as it arrived on a channel.
type Message struct {
	Channel    string
	Event      string
	Data       []byte
	ReceivedAt time.Time
}

type Handler func(Message)

// Dialer opens the long-lived connection to the broadcast service.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn owns every subscription made through it. Close is idempotent.
type Conn interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// Subscription is one channel. Unsubscribe is idempotent.
type Subscription interface {
	Channel() string
	Bind(event string, h Handler)
	Unsubscribe() error
}

// Publisher sends an event to every subscriber of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, p Payload) error
}

// envelope is the wire frame carried on the transport.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
