package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"busclient/internal/broadcast"
	"busclient/internal/domain"
	"busclient/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*ChannelRegistry, *broadcast.Hub, *NotificationFeed) {
	t.Helper()
	hub := broadcast.NewHub()
	feed := NewNotificationFeed(FeedOptions{Capacity: 10, TTL: time.Hour})
	t.Cleanup(feed.ClearAll)
	return NewChannelRegistry(hub, feed), hub, feed
}

func publish(t *testing.T, hub *broadcast.Hub, channel, event, msg, typ string) {
	t.Helper()
	require.NoError(t, hub.Publish(context.Background(), channel, event, broadcast.Payload{Message: msg, Type: typ}))
}

func TestChannelsFor(t *testing.T) {
	assert.Empty(t, ChannelsFor(models.NoPrincipal()))

	user := ChannelsFor(testUser(7))
	require.Len(t, user, 3)
	assert.Equal(t, "user-7", user[0].ChannelName)
	assert.Equal(t, []string{"notification"}, user[0].EventNames)

	op := ChannelsFor(testOperator(3))
	names := make([]string, 0, len(op))
	for _, s := range op {
		names = append(names, s.ChannelName)
	}
	assert.Equal(t, []string{"admin-notifications", "system", "admin-dashboard-3", "general"}, names)
}

func TestChannelsForSkipsPersonalChannelWithoutID(t *testing.T) {
	channelNames := func(p models.Principal) []string {
		var out []string
		for _, s := range ChannelsFor(p) {
			out = append(out, s.ChannelName)
		}
		return out
	}
	assert.Equal(t, []string{"general", "bookings"},
		channelNames(models.UserPrincipal(models.UserAccount{FullName: "No Id"})))
	assert.Equal(t, []string{"admin-notifications", "system", "general"},
		channelNames(models.OperatorPrincipal(models.OperatorAccount{FullName: "No Id"})))
}

func TestAttachDeliversIntoFeed(t *testing.T) {
	reg, hub, feed := newTestRegistry(t)

	subs, err := reg.Attach(context.Background(), testUser(7))
	require.NoError(t, err)
	assert.Len(t, subs, 3)
	assert.Equal(t, 1, hub.Subscribers("user-7"))

	publish(t, hub, "user-7", "notification", "Your booking BT000123 is confirmed", "success")

	entries := feed.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Your booking BT000123 is confirmed", entries[0].Text)
	assert.Equal(t, models.LevelSuccess, entries[0].Level)
	assert.Equal(t, models.OriginBroadcast, entries[0].Origin)
	assert.Equal(t, "user-7", entries[0].Channel)
	assert.False(t, entries[0].ReceivedAt.IsZero())
}

func TestDetachStopsDelivery(t *testing.T) {
	reg, hub, feed := newTestRegistry(t)
	_, err := reg.Attach(context.Background(), testUser(7))
	require.NoError(t, err)

	reg.DetachAll()
	assert.Zero(t, hub.Subscribers("user-7"))
	assert.Empty(t, reg.Subscriptions())
	assert.True(t, reg.Owner().IsNone())

	publish(t, hub, "user-7", "notification", "too late", "")
	assert.Zero(t, feed.Len())

	reg.DetachAll()
}

func TestUnboundEventsAndBadPayloadsAreDropped(t *testing.T) {
	reg, hub, feed := newTestRegistry(t)
	_, err := reg.Attach(context.Background(), testUser(7))
	require.NoError(t, err)

	publish(t, hub, "user-7", "dashboard-update", "not for users", "")
	hub.PublishRaw("user-7", "notification", []byte(`{"message":`))
	hub.PublishRaw("user-7", "notification", []byte(`{"message":"x","type":"shout"}`))
	hub.PublishRaw("user-7", "notification", []byte(`{"message":"   "}`))
	hub.PublishRaw("user-7", "notification", []byte(`{"message":"x","timestamp":"yesterday"}`))
	assert.Zero(t, feed.Len())

	hub.PublishRaw("user-7", "notification", []byte(`{"message":"Seat A1 released"}`))
	require.Equal(t, 1, feed.Len())
	assert.Equal(t, models.LevelInfo, feed.Entries()[0].Level)
}

func TestAttachSwitchesPrincipal(t *testing.T) {
	reg, hub, feed := newTestRegistry(t)
	_, err := reg.Attach(context.Background(), testUser(7))
	require.NoError(t, err)

	_, err = reg.Attach(context.Background(), testOperator(3))
	require.NoError(t, err)
	assert.Zero(t, hub.Subscribers("user-7"))
	assert.Equal(t, 1, hub.Subscribers("admin-dashboard-3"))
	assert.Equal(t, 1, hub.Subscribers(ChannelGeneral), "general is bound once per principal")
	assert.Equal(t, models.PrincipalOperator, reg.Owner().Kind)

	publish(t, hub, "user-7", "notification", "stale", "")
	publish(t, hub, ChannelAdminNotifications, "admin-notification", "Counter booking BT000002 issued", "success")
	require.Equal(t, 1, feed.Len())
	assert.Equal(t, ChannelAdminNotifications, feed.Entries()[0].Channel)
}

func TestAttachNoneDetaches(t *testing.T) {
	reg, hub, _ := newTestRegistry(t)
	_, err := reg.Attach(context.Background(), testOperator(3))
	require.NoError(t, err)

	subs, err := reg.Attach(context.Background(), models.NoPrincipal())
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Zero(t, hub.Subscribers(ChannelSystem))
}

type failingDialer struct{ err error }

func (d failingDialer) Dial(context.Context) (broadcast.Conn, error) { return nil, d.err }

func TestAttachDialFailure(t *testing.T) {
	feed := NewNotificationFeed(FeedOptions{})
	reg := NewChannelRegistry(failingDialer{err: errors.New("connection refused")}, feed)

	_, err := reg.Attach(context.Background(), testUser(7))
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
	assert.Empty(t, reg.Subscriptions())
	assert.True(t, reg.Owner().IsNone())
}

func TestStaleHandlerIsIgnored(t *testing.T) {
	reg, _, feed := newTestRegistry(t)
	_, err := reg.Attach(context.Background(), testUser(7))
	require.NoError(t, err)

	stale := reg.handler(reg.currentGen())
	reg.DetachAll()

	stale(broadcast.Message{Channel: "user-7", Event: "notification", Data: []byte(`{"message":"late"}`)})
	assert.Zero(t, feed.Len())
}

func TestDetachAllDoesNotWaitForDial(t *testing.T) {
	dialer := newHangingDialer()
	reg := NewChannelRegistry(dialer, NewNotificationFeed(FeedOptions{}))
	reg.ConnectTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := reg.Attach(ctx, testUser(7))
		done <- err
	}()
	<-dialer.entered

	start := time.Now()
	reg.DetachAll()
	assert.Less(t, time.Since(start), time.Second)

	cancel()
	err := <-done
	assert.True(t, domain.IsNetwork(err))
	assert.Empty(t, reg.Subscriptions())
}

func TestOvertakenAttachReleasesItsChannels(t *testing.T) {
	hub := broadcast.NewHub()
	gate := newGatedDialer(hub)
	feed := NewNotificationFeed(FeedOptions{Capacity: 10, TTL: time.Hour})
	t.Cleanup(feed.ClearAll)
	reg := NewChannelRegistry(gate, feed)

	done := make(chan error, 1)
	go func() {
		_, err := reg.Attach(context.Background(), testUser(7))
		done <- err
	}()
	<-gate.entered
	reg.DetachAll()
	close(gate.release)

	require.ErrorIs(t, <-done, ErrAttachSuperseded)
	assert.Zero(t, hub.Subscribers("user-7"))
	assert.Empty(t, reg.Subscriptions())
	assert.True(t, reg.Owner().IsNone())

	publish(t, hub, "user-7", "notification", "late", "")
	assert.Zero(t, feed.Len())
}
