package broadcast

import (
	"context"
	"sync"
	"time"
)

// Hub is an in-process broadcast service. Publish delivers synchronously to every bound handler.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*memSub]struct{}
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[*memSub]struct{}{}, now: time.Now}
}

func (h *Hub) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memConn{hub: h, subs: map[*memSub]struct{}{}}, nil
}

func (h *Hub) Publish(ctx context.Context, channel, event string, p Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodePayload(p)
	if err != nil {
		return err
	}
	h.PublishRaw(channel, event, data)
	return nil
}

// PublishRaw delivers data as-is, without payload validation.
func (h *Hub) PublishRaw(channel, event string, data []byte) {
	h.mu.Lock()
	targets := make([]*memSub, 0, len(h.subs[channel]))
	for s := range h.subs[channel] {
		targets = append(targets, s)
	}
	now := h.now()
	h.mu.Unlock()

	msg := Message{Channel: channel, Event: event, Data: append([]byte(nil), data...), ReceivedAt: now}
	for _, s := range targets {
		s.dispatch(msg)
	}
}

// Subscribers counts live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channel])
}

func (h *Hub) add(s *memSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.channel]
	if !ok {
		set = map[*memSub]struct{}{}
		h.subs[s.channel] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) remove(s *memSub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.channel)
		}
	}
}

type memConn struct {
	hub *Hub

	mu     sync.Mutex
	subs   map[*memSub]struct{}
	closed bool
}

func (c *memConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s := &memSub{conn: c, channel: channel, handlers: map[string][]Handler{}}
	c.subs[s] = struct{}{}
	c.hub.add(s)
	return s, nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*memSub, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return nil
}

func (c *memConn) forget(s *memSub) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type memSub struct {
	conn    *memConn
	channel string

	mu       sync.Mutex
	handlers map[string][]Handler
	once     sync.Once
}

func (s *memSub) Channel() string { return s.channel }

func (s *memSub) Bind(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		return
	}
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *memSub) Unsubscribe() error {
	s.once.Do(func() {
		s.conn.hub.remove(s)
		s.conn.forget(s)
		s.mu.Lock()
		s.handlers = nil
		s.mu.Unlock()
	})
	return nil
}

func (s *memSub) dispatch(msg Message) {
	s.mu.Lock()
	hs := append([]Handler(nil), s.handlers[msg.Event]...)
	s.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}
