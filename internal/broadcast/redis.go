package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDialer maps channels onto Redis pub/sub channels named Prefix+channel.
// Each frame is a JSON envelope {"event": ..., "data": {...}}.
type RedisDialer struct {
	Client *redis.Client
	Prefix string
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (d *RedisDialer) Dial(ctx context.Context) (Conn, error) {
	if d.Client == nil {
		return nil, fmt.Errorf("broadcast: redis client belum diset")
	}
	if err := d.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broadcast: redis ping: %w", err)
	}
	return &redisConn{dialer: d, subs: map[*redisSub]struct{}{}}, nil
}

// RedisPublisher is the sending side, used by the session authority.
type RedisPublisher struct {
	Client *redis.Client
	Prefix string
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload Payload) error {
	data, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	if err := p.Client.Publish(ctx, p.Prefix+channel, frame).Err(); err != nil {
		return fmt.Errorf("broadcast: redis publish %s: %w", channel, err)
	}
	return nil
}

type redisConn struct {
	dialer *RedisDialer

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

func (c *redisConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	ps := c.dialer.Client.Subscribe(ctx, c.dialer.Prefix+channel)
	// wait for the subscribe confirmation so no event published after this returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("broadcast: subscribe %s: %w", channel, err)
	}

	s := &redisSub{conn: c, channel: channel, ps: ps, handlers: map[string][]Handler{}}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	go s.loop()
	return s, nil
}

func (c *redisConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*redisSub, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *redisConn) forget(s *redisSub) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type redisSub struct {
	conn    *redisConn
	channel string
	ps      *redis.PubSub

	mu       sync.Mutex
	handlers map[string][]Handler
	once     sync.Once
	err      error
}

func (s *redisSub) Channel() string { return s.channel }

func (s *redisSub) Bind(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		return
	}
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *redisSub) Unsubscribe() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.handlers = nil
		s.mu.Unlock()
		s.err = s.ps.Close()
		s.conn.forget(s)
	})
	return s.err
}

func (s *redisSub) loop() {
	for msg := range s.ps.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Event == "" {
			log.Printf("[BROADCAST] action=drop_frame channel=%s msg=envelope tidak valid", s.channel)
			continue
		}
		s.mu.Lock()
		hs := append([]Handler(nil), s.handlers[env.Event]...)
		s.mu.Unlock()

		m := Message{Channel: s.channel, Event: env.Event, Data: env.Data, ReceivedAt: time.Now()}
		for _, h := range hs {
			h(m)
		}
	}
}
