package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"busclient/internal/broadcast"
	"busclient/internal/domain"
	"busclient/internal/domain/models"
	"busclient/internal/utils"
)

const (
	ChannelGeneral            = "general"
	ChannelBookings           = "bookings"
	ChannelAdminNotifications = "admin-notifications"
	ChannelSystem             = "system"

	DefaultConnectTimeout = 10 * time.Second
)

// UserChannel is the personal channel of an end user.
func UserChannel(id domain.ID) string { return fmt.Sprintf("user-%d", id) }

// OperatorDashboardChannel is the personal channel of a counter operator.
func OperatorDashboardChannel(id domain.ID) string { return fmt.Sprintf("admin-dashboard-%d", id) }

// ChannelsFor lists the channels and events bound for p. PrincipalNone binds nothing, and a
// principal without a positive id gets no personal channel.
func ChannelsFor(p models.Principal) []models.ChannelSubscription {
	var out []models.ChannelSubscription
	switch p.Kind {
	case models.PrincipalUser:
		if p.ID() > 0 {
			out = append(out, models.ChannelSubscription{ChannelName: UserChannel(p.ID()), EventNames: []string{"notification"}})
		}
		out = append(out,
			models.ChannelSubscription{ChannelName: ChannelGeneral, EventNames: []string{"system-notification"}},
			models.ChannelSubscription{ChannelName: ChannelBookings, EventNames: []string{"booking-created", "booking-updated", "booking-cancelled"}},
		)
	case models.PrincipalOperator:
		out = append(out,
			models.ChannelSubscription{ChannelName: ChannelAdminNotifications, EventNames: []string{"admin-notification", "system-alert"}},
			models.ChannelSubscription{ChannelName: ChannelSystem, EventNames: []string{"system-notification", "maintenance-alert", "error-report"}},
		)
		if p.ID() > 0 {
			out = append(out, models.ChannelSubscription{ChannelName: OperatorDashboardChannel(p.ID()), EventNames: []string{"dashboard-update", "personal-notification"}})
		}
		out = append(out, models.ChannelSubscription{ChannelName: ChannelGeneral, EventNames: []string{"system-notification"}})
	}
	return out
}

// ChannelRegistry owns the single broadcast connection and the subscriptions of the active principal.
// Handlers are stamped with the generation they were bound under; once DetachAll bumps the
// generation, events still arriving on old subscriptions are dropped instead of reaching the feed.
type ChannelRegistry struct {
	Dialer         broadcast.Dialer
	Feed           *NotificationFeed
	ConnectTimeout time.Duration

	mu     sync.Mutex // guards conn, subs, active and owner
	conn   broadcast.Conn
	subs   []broadcast.Subscription
	active []models.ChannelSubscription
	owner  models.Principal

	genMu sync.RWMutex // held for reading while a handler delivers
	gen   uint64
}

func NewChannelRegistry(d broadcast.Dialer, feed *NotificationFeed) *ChannelRegistry {
	return &ChannelRegistry{Dialer: d, Feed: feed, owner: models.NoPrincipal()}
}

func (r *ChannelRegistry) connectTimeout() time.Duration {
	if r.ConnectTimeout > 0 {
		return r.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// ErrAttachSuperseded is returned by an Attach that a later Attach or DetachAll overtook.
var ErrAttachSuperseded = errors.New("channels: attach superseded")

// Attach tears down everything bound so far and subscribes the channels of p.
// The dial and subscribe calls run without the registry lock, so DetachAll never waits on the
// network; a newer Attach or DetachAll overtakes this one and its connection is released.
// A failure leaves the registry fully detached.
func (r *ChannelRegistry) Attach(ctx context.Context, p models.Principal) ([]models.ChannelSubscription, error) {
	wanted := ChannelsFor(p)

	r.mu.Lock()
	r.detachLocked()
	gen := r.currentGen()
	dialer := r.Dialer
	r.mu.Unlock()

	if len(wanted) == 0 {
		return nil, nil
	}
	if dialer == nil {
		return nil, domain.InternalError{Msg: "broadcast dialer is not configured"}
	}

	cctx, cancel := context.WithTimeout(ctx, r.connectTimeout())
	defer cancel()

	conn, err := dialer.Dial(cctx)
	if err != nil {
		utils.LogEvent("", "channels", "dial_failed", err.Error())
		return nil, domain.NetworkError{Op: "broadcast connect", Err: err}
	}

	subs := make([]broadcast.Subscription, 0, len(wanted))
	for _, ch := range wanted {
		sub, err := conn.Subscribe(cctx, ch.ChannelName)
		if err != nil {
			utils.LogEvent("", "channels", "subscribe_failed", fmt.Sprintf("channel=%s err=%v", ch.ChannelName, err))
			release(conn, subs)
			return nil, domain.NetworkError{Op: "broadcast subscribe " + ch.ChannelName, Err: err}
		}
		for _, ev := range ch.EventNames {
			sub.Bind(ev, r.handler(gen))
		}
		subs = append(subs, sub)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentGen() != gen || ctx.Err() != nil {
		release(conn, subs)
		utils.LogEvent("", "channels", "attach_superseded", fmt.Sprintf("kind=%s id=%d", p.Kind, p.ID()))
		return nil, ErrAttachSuperseded
	}
	r.conn = conn
	r.subs = subs
	r.active = wanted
	r.owner = p

	utils.LogEvent("", "channels", "attach", fmt.Sprintf("kind=%s id=%d channels=%d", p.Kind, p.ID(), len(r.active)))
	return r.subscriptionsLocked(), nil
}

// DetachAll unsubscribes every channel and closes the connection. Safe to call repeatedly.
func (r *ChannelRegistry) DetachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
}

func (r *ChannelRegistry) detachLocked() {
	r.genMu.Lock()
	r.gen++
	r.genMu.Unlock()

	if len(r.subs) > 0 {
		utils.LogEvent("", "channels", "detach", fmt.Sprintf("channels=%d", len(r.subs)))
	}
	release(r.conn, r.subs)
	r.conn = nil
	r.subs = nil
	r.active = nil
	r.owner = models.NoPrincipal()
}

func release(conn broadcast.Conn, subs []broadcast.Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			utils.LogEvent("", "channels", "unsubscribe_failed", fmt.Sprintf("channel=%s err=%v", sub.Channel(), err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			utils.LogEvent("", "channels", "close_failed", err.Error())
		}
	}
}

// Subscriptions returns the channels bound for the current owner.
func (r *ChannelRegistry) Subscriptions() []models.ChannelSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscriptionsLocked()
}

func (r *ChannelRegistry) subscriptionsLocked() []models.ChannelSubscription {
	out := make([]models.ChannelSubscription, 0, len(r.active))
	for _, s := range r.active {
		out = append(out, models.ChannelSubscription{
			ChannelName: s.ChannelName,
			EventNames:  append([]string(nil), s.EventNames...),
		})
	}
	return out
}

// Owner returns the principal the current subscriptions belong to.
func (r *ChannelRegistry) Owner() models.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

func (r *ChannelRegistry) currentGen() uint64 {
	r.genMu.RLock()
	defer r.genMu.RUnlock()
	return r.gen
}

// handler validates the payload and forwards it into the feed if gen is still current.
func (r *ChannelRegistry) handler(gen uint64) broadcast.Handler {
	return func(m broadcast.Message) {
		p, err := broadcast.DecodePayload(m.Data)
		if err != nil {
			utils.LogEvent("", "channels", "drop_event", fmt.Sprintf("channel=%s event=%s err=%v", m.Channel, m.Event, err))
			return
		}

		r.genMu.RLock()
		defer r.genMu.RUnlock()
		if r.gen != gen || r.Feed == nil {
			return
		}
		receivedAt := m.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = time.Now()
		}
		r.Feed.Deliver(models.NotificationEntry{
			Text:       p.Message,
			Level:      p.Level(),
			Origin:     models.OriginBroadcast,
			Channel:    m.Channel,
			ReceivedAt: receivedAt,
		})
	}
}
