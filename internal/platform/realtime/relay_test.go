package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestRelay(t *testing.T, channel string) (*RedisRelay, *Hub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	hub := NewHub()
	return NewRedisRelay(client, channel, hub, zerolog.Nop()), hub, mr
}

func TestRedisRelay_DeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() (*RedisRelay, *Hub) {
		client, err := NewRedisClient("redis://" + mr.Addr())
		if err != nil {
			t.Fatalf("NewRedisClient: %v", err)
		}
		t.Cleanup(func() { client.Close() })
		hub := NewHub()
		relay := NewRedisRelay(client, "alerts", hub, zerolog.Nop())
		if err := relay.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		t.Cleanup(func() { relay.Close() })
		return relay, hub
	}

	publisher, _ := newInstance()
	_, remoteHub := newInstance()

	uid := uuid.New()
	c := newTestClient(remoteHub)
	remoteHub.Authenticate(c, uid)

	if err := publisher.Publish(ctx, alertEvent(uid)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := expectEvent(t, c)
	if got.UserID != uid || got.Type != EventNewAlert {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestRedisRelay_RejectsUnroutable(t *testing.T) {
	relay, _, _ := newTestRelay(t, "alerts")
	if err := relay.Publish(context.Background(), Event{Type: EventNewAlert}); err != ErrUnroutable {
		t.Fatalf("expected ErrUnroutable, got %v", err)
	}
}

func TestRedisRelay_FallsBackToLocalWhenRedisDown(t *testing.T) {
	relay, hub, mr := newTestRelay(t, "alerts")
	uid := uuid.New()
	c := newTestClient(hub)
	hub.Authenticate(c, uid)

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := relay.Publish(ctx, alertEvent(uid)); err == nil {
		t.Fatal("expected relay error when redis is down")
	}
	expectEvent(t, c)
}

func TestRedisRelay_CloseWithoutStart(t *testing.T) {
	relay, _, _ := newTestRelay(t, "alerts")
	if err := relay.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
