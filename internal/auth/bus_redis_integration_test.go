//go:build integration

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	return client
}

func TestRedisBusFansOutAcrossInstances(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewRedisBus(client, "")
	listener := NewRedisBus(client, "")

	events := make(chan Event, 4)
	sub := listener.Subscribe(func(e Event) { events <- e })
	defer sub.Unsubscribe()

	go func() { _ = listener.Run(ctx) }()

	// the listener subscribes asynchronously; republish until it is attached
	deadline := time.After(10 * time.Second)
	want := Event{Kind: EventSignedOut, SessionID: "s-1", UserID: "u-1"}
	for {
		if err := publisher.Publish(ctx, want); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got := <-events:
			if got != want {
				t.Fatalf("received %+v, want %+v", got, want)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("event was not delivered")
		}
	}
}

func TestManagerOverRedisBusSignsOutPeers(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemorySessionStore()
	bus := NewRedisBus(client, "test:sessions")
	manager := NewManager(time.Minute, time.Hour, store, bus)
	go func() { _ = bus.Run(ctx) }()

	signedIn := make(chan Event, 8)
	sub := manager.Subscribe(func(e Event) {
		if e.Kind == EventSignedIn {
			signedIn <- e
		}
	})
	defer sub.Unsubscribe()

	deadline := time.After(10 * time.Second)
	for {
		if _, err := manager.Issue(ctx, "user-1"); err != nil {
			t.Fatalf("issue: %v", err)
		}
		select {
		case e := <-signedIn:
			if e.UserID != "user-1" || e.Session == nil {
				t.Fatalf("unexpected relayed event %+v", e)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("sign-in was not relayed")
		}
	}
}
