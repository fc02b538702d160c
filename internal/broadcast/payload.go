package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"busclient/internal/domain/models"
)

// PayloadVersion is the only payload version this client understands. A missing version is read as 1.
const PayloadVersion = 1

// Payload is the event body: {message, type?, timestamp?}.
type Payload struct {
	Version   int    `json:"v,omitempty"`
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DecodePayload parses and validates an event body. Anything it rejects must not reach the feed.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (p Payload) Validate() error {
	if p.Version != 0 && p.Version != PayloadVersion {
		return fmt.Errorf("payload: unsupported version %d", p.Version)
	}
	if strings.TrimSpace(p.Message) == "" {
		return fmt.Errorf("payload: message kosong")
	}
	if _, ok := models.ParseNotificationLevel(p.Type); !ok {
		return fmt.Errorf("payload: unknown type %q", p.Type)
	}
	if _, err := p.parseTime(); err != nil {
		return fmt.Errorf("payload: timestamp: %w", err)
	}
	return nil
}

func (p Payload) Level() models.NotificationLevel {
	lvl, ok := models.ParseNotificationLevel(p.Type)
	if !ok {
		return models.LevelInfo
	}
	return lvl
}

// Time returns the sender timestamp when one was given.
func (p Payload) Time() (time.Time, bool) {
	t, err := p.parseTime()
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func (p Payload) parseTime() (time.Time, error) {
	ts := strings.TrimSpace(p.Timestamp)
	if ts == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, ts)
}

// EncodePayload stamps the current version and validates before encoding.
func EncodePayload(p Payload) ([]byte, error) {
	p.Version = PayloadVersion
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}
