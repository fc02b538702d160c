package services

import (
	"strings"
	"sync"
	"time"

	"busclient/internal/domain/models"
)

const (
	DefaultFeedCapacity = 10
	DefaultFeedTTL      = 10 * time.Second
)

// NotificationFeed is a capacity-bounded, TTL-evicting list of notifications, newest first.
// Capacity eviction, expiry and dismissal all remove by id, so any of them may run after
// another already removed the entry.
type NotificationFeed struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	nextID   uint64
	entries  []models.NotificationEntry // newest first
	timers   map[uint64]*time.Timer
	watchers map[uint64]func()
	watchSeq uint64
}

type FeedOptions struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
}

func NewNotificationFeed(opts FeedOptions) *NotificationFeed {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultFeedCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultFeedTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &NotificationFeed{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		now:      opts.Now,
		timers:   map[uint64]*time.Timer{},
		watchers: map[uint64]func(){},
	}
}

// Push adds a locally-originated entry and returns its id.
func (f *NotificationFeed) Push(text string) uint64 {
	return f.Deliver(models.NotificationEntry{
		Text:       text,
		Level:      models.LevelSuccess,
		Origin:     models.OriginLocal,
		ReceivedAt: f.now(),
	})
}

// Deliver assigns the next id to e, prepends it and trims the tail to capacity.
// Blank text is dropped and returns 0.
func (f *NotificationFeed) Deliver(e models.NotificationEntry) uint64 {
	e.Text = strings.TrimSpace(e.Text)
	if e.Text == "" {
		return 0
	}
	if e.Level == "" {
		e.Level = models.LevelInfo
	}
	if e.Origin == "" {
		e.Origin = models.OriginBroadcast
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = f.now()
	}

	f.mu.Lock()
	f.nextID++
	e.ID = f.nextID
	f.entries = append([]models.NotificationEntry{e}, f.entries...)
	for len(f.entries) > f.capacity {
		oldest := f.entries[len(f.entries)-1]
		f.entries = f.entries[:len(f.entries)-1]
		f.stopTimerLocked(oldest.ID)
	}
	id := e.ID
	f.timers[id] = time.AfterFunc(f.ttl, func() { f.expire(id) })
	watchers := f.watchersLocked()
	f.mu.Unlock()

	notify(watchers)
	return id
}

// Dismiss removes the entry if still present. Unknown ids are ignored.
func (f *NotificationFeed) Dismiss(id uint64) {
	f.mu.Lock()
	removed := f.removeLocked(id)
	watchers := f.watchersLocked()
	f.mu.Unlock()

	if removed {
		notify(watchers)
	}
}

// ClearAll drops every entry and cancels their expiry timers.
func (f *NotificationFeed) ClearAll() {
	f.mu.Lock()
	had := len(f.entries) > 0
	for _, e := range f.entries {
		f.stopTimerLocked(e.ID)
	}
	f.entries = nil
	watchers := f.watchersLocked()
	f.mu.Unlock()

	if had {
		notify(watchers)
	}
}

// Entries returns a copy, newest first.
func (f *NotificationFeed) Entries() []models.NotificationEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NotificationEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *NotificationFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *NotificationFeed) Capacity() int { return f.capacity }

// Watch registers fn to run after every change. fn runs outside the feed lock and must not block.
func (f *NotificationFeed) Watch(fn func()) (cancel func()) {
	f.mu.Lock()
	f.watchSeq++
	id := f.watchSeq
	f.watchers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

func (f *NotificationFeed) expire(id uint64) {
	f.mu.Lock()
	delete(f.timers, id)
	removed := f.removeLocked(id)
	watchers := f.watchersLocked()
	f.mu.Unlock()

	if removed {
		notify(watchers)
	}
}

func (f *NotificationFeed) removeLocked(id uint64) bool {
	f.stopTimerLocked(id)
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i:i], f.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (f *NotificationFeed) stopTimerLocked(id uint64) {
	if t, ok := f.timers[id]; ok {
		t.Stop()
		delete(f.timers, id)
	}
}

func (f *NotificationFeed) watchersLocked() []func() {
	if len(f.watchers) == 0 {
		return nil
	}
	out := make([]func(), 0, len(f.watchers))
	for _, fn := range f.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
