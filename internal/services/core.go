package services

import (
	"context"
	"sync"
	"time"

	"busclient/internal/broadcast"
	"busclient/internal/domain/models"
	"busclient/internal/utils"
)

// Backend is what the client needs from the ticketing API.
type Backend interface {
	SessionAuthority
	BookingSubmitter
}

type CoreOptions struct {
	Backend         Backend
	Dialer          broadcast.Dialer
	Fares           *FareTable
	ProbeTimeout    time.Duration
	SubmitTimeout   time.Duration
	RefreshInterval time.Duration
	FeedCapacity    int
	FeedTTL         time.Duration
}

// Core wires the session, the broadcast channels, the feed and the booking form together.
// A principal change drops the old channels and updates the booking form at once; binding the
// new channels happens on a background worker so no session write waits on the broadcast service.
type Core struct {
	Principals *PrincipalStore
	Session    *SessionResolver
	Channels   *ChannelRegistry
	Feed       *NotificationFeed
	Fares      FareEngine
	Booking    *BookingOrchestrator
	Receipts   ReceiptService

	refresh time.Duration

	mu      sync.Mutex
	ctx     context.Context
	stop    context.CancelFunc
	unwatch func()
	wg      sync.WaitGroup

	bindMu     sync.Mutex
	bindWant   models.Principal
	bindSeq    uint64 // last requested binding
	bindDone   uint64 // last binding the worker finished
	bindCtx    context.Context
	bindCancel context.CancelFunc
	bindKick   chan struct{}
	bindIdle   chan struct{} // closed and replaced whenever bindDone moves
}

func NewCore(opts CoreOptions) *Core {
	store := NewPrincipalStore()
	feed := NewNotificationFeed(FeedOptions{Capacity: opts.FeedCapacity, TTL: opts.FeedTTL})
	resolver := NewSessionResolver(opts.Backend, store, opts.ProbeTimeout)
	registry := NewChannelRegistry(opts.Dialer, feed)
	engine := FareEngine{Table: opts.Fares}
	booking := NewBookingOrchestrator(BookingOptions{
		Fares:      engine,
		Submitter:  opts.Backend,
		Feed:       feed,
		Principals: store,
		Session:    resolver,
		Timeout:    opts.SubmitTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{
		Principals: store,
		Session:    resolver,
		Channels:   registry,
		Feed:       feed,
		Fares:      engine,
		Booking:    booking,
		Receipts:   ReceiptService{Bookings: booking},
		refresh:    opts.RefreshInterval,
		ctx:        ctx,
		stop:       cancel,
		bindWant:   models.NoPrincipal(),
		bindKick:   make(chan struct{}, 1),
		bindIdle:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.bindChannels()
	c.unwatch = store.Subscribe(c.onPrincipalChange)
	return c
}

// onPrincipalChange runs under the store's write lock and must not touch the network.
func (c *Core) onPrincipalChange(prev, next models.Principal) {
	c.bindMu.Lock()
	if c.bindCancel != nil {
		c.bindCancel()
	}
	c.bindCtx, c.bindCancel = context.WithCancel(c.ctx)
	c.bindWant = next
	c.bindSeq++
	c.bindMu.Unlock()

	c.Channels.DetachAll()
	select {
	case c.bindKick <- struct{}{}:
	default:
	}
	c.Booking.OnPrincipalChange(prev, next)
}

// bindChannels attaches the channels of the most recent principal; intermediate ones are skipped.
func (c *Core) bindChannels() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.bindKick:
		}

		c.bindMu.Lock()
		p, seq, ctx := c.bindWant, c.bindSeq, c.bindCtx
		c.bindMu.Unlock()

		if !p.IsNone() && ctx != nil && ctx.Err() == nil {
			if _, err := c.Channels.Attach(ctx, p); err != nil {
				utils.LogEvent("", "core", "attach_failed", err.Error())
			}
		}

		c.bindMu.Lock()
		if seq > c.bindDone {
			c.bindDone = seq
			close(c.bindIdle)
			c.bindIdle = make(chan struct{})
		}
		c.bindMu.Unlock()
	}
}

// WaitChannels blocks until the channels of the latest principal have been bound (or binding
// failed), or ctx is done.
func (c *Core) WaitChannels(ctx context.Context) error {
	for {
		c.bindMu.Lock()
		if c.bindDone >= c.bindSeq {
			c.bindMu.Unlock()
			return nil
		}
		idle := c.bindIdle
		c.bindMu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

// Start resolves the session once, waits for its channels and, if a refresh interval is set,
// keeps re-probing in the background.
func (c *Core) Start(ctx context.Context) models.Principal {
	p := c.Session.Resolve(ctx)
	if err := c.WaitChannels(ctx); err != nil {
		utils.LogEvent(utils.RequestIDFrom(ctx), "core", "channels_pending", err.Error())
	}
	if c.refresh > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.Session.Watch(c.ctx, c.refresh)
		}()
	}
	utils.LogEvent("", "core", "start", "principal="+p.Kind.String())
	return p
}

// Done is closed once Close has started; long-lived streams end on it.
func (c *Core) Done() <-chan struct{} { return c.ctx.Done() }

// Close drops in-flight resolutions, unbinds every channel and empties the feed.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unwatch == nil {
		return
	}
	c.unwatch()
	c.unwatch = nil
	c.stop()
	c.wg.Wait()
	c.Session.Cancel()
	c.Channels.DetachAll()
	c.Feed.ClearAll()
	utils.LogEvent("", "core", "close", "ok")
}
