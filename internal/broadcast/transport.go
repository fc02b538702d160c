package broadcast

import (
	"fmt"
	"strings"
)

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Transport is one configured broadcast service, both sides.
type Transport struct {
	Dialer    Dialer
	Publisher Publisher
	Hub       *Hub // set for the memory driver
	close     func() error
}

func (t *Transport) Close() error {
	if t == nil || t.close == nil {
		return nil
	}
	return t.close()
}

// Open builds the transport for driver ("redis" or "memory").
func Open(driver string, opts RedisOptions) (*Transport, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		hub := NewHub()
		return &Transport{Dialer: hub, Publisher: hub, Hub: hub}, nil
	case DriverRedis, "":
		client := NewRedisClient(opts.Addr, opts.Password, opts.DB)
		return &Transport{
			Dialer:    &RedisDialer{Client: client, Prefix: opts.Prefix},
			Publisher: &RedisPublisher{Client: client, Prefix: opts.Prefix},
			close:     client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("broadcast: driver %q tidak dikenal", driver)
	}
}
