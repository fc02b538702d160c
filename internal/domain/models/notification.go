package models

import (
	"strings"
	"time"
)

// NotificationLevel mirrors the optional "type" of a broadcast payload.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// ParseNotificationLevel maps "" to info and rejects anything outside the enum.
func ParseNotificationLevel(s string) (NotificationLevel, bool) {
	switch NotificationLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LevelInfo, true
	case LevelSuccess:
		return LevelSuccess, true
	case LevelInfo:
		return LevelInfo, true
	case LevelWarning:
		return LevelWarning, true
	case LevelError:
		return LevelError, true
	}
	return "", false
}

// NotificationOrigin separates broadcast events from entries the client created itself.
type NotificationOrigin string

const (
	OriginBroadcast NotificationOrigin = "broadcast"
	OriginLocal     NotificationOrigin = "local"
)

// NotificationEntry is one item of the notification feed.
type NotificationEntry struct {
	ID         uint64             `json:"id"`
	Text       string             `json:"text"`
	Level      NotificationLevel  `json:"level"`
	Origin     NotificationOrigin `json:"origin"`
	Channel    string             `json:"channel,omitempty"`
	ReceivedAt time.Time          `json:"receivedAt"`
}

// ChannelSubscription is one channel bound for the active principal.
type ChannelSubscription struct {
	ChannelName string   `json:"channel"`
	EventNames  []string `json:"events"`
}
