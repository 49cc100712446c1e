package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/yukikurage/taskflow-api/internal/events"
)

const groupPattern = "project_*"

// RedisBroker publishes frames on Redis channels named after the group and
// relays every group's channel into a local Hub, so any process can reach
// sockets held by any other.
type RedisBroker struct {
	pool *redis.Pool
	log  *slog.Logger
	// retry is the pause between subscription attempts.
	retry time.Duration
	// ping keeps an idle subscription inside the connection read timeout.
	ping time.Duration
}

func NewRedisBroker(pool *redis.Pool, log *slog.Logger) *RedisBroker {
	return &RedisBroker{pool: pool, log: log, retry: time.Second, ping: 2 * time.Second}
}

func (b *RedisBroker) Publish(ctx context.Context, projectID uint64, eventType string, payload any) bool {
	frame, err := EncodeFrame(eventType, payload)
	if err != nil {
		b.log.Warn("failed to encode event", "event_type", eventType, "error", err)
		return false
	}

	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		b.log.Warn("broadcast transport unavailable", "project_id", projectID, "error", err)
		return false
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PUBLISH", events.ProjectGroup(projectID), frame); err != nil {
		b.log.Warn("failed to publish event", "project_id", projectID, "event_type", eventType, "error", err)
		return false
	}
	return true
}

// Run relays published frames into hub until ctx is done, resubscribing
// after connection failures. ready, if not nil, is closed once the first
// subscription is active.
func (b *RedisBroker) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	for {
		err := b.subscribe(ctx, hub, ready)
		if ctx.Err() != nil {
			return nil
		}
		b.log.Warn("broadcast subscription lost", "error", err)
		// Only signal once.
		ready = nil

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.retry):
		}
	}
}

func (b *RedisBroker) subscribe(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	psc := redis.PubSubConn{Conn: conn}
	defer psc.Close()

	if err := psc.PSubscribe(groupPattern); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go b.keepAlive(psc, stop)

	for {
		switch msg := psc.ReceiveContext(ctx).(type) {
		case redis.Message:
			if !strings.HasPrefix(msg.Channel, "project_") {
				continue
			}
			hub.Broadcast(msg.Channel, msg.Data)
		case redis.Subscription:
			if msg.Kind == "psubscribe" && ready != nil {
				close(ready)
				ready = nil
				b.log.Info("broadcast subscription active", "pattern", groupPattern)
			}
		case error:
			return msg
		}
	}
}

// keepAlive pings the subscribed connection until stop is closed. A failed
// ping surfaces as a receive error in subscribe.
func (b *RedisBroker) keepAlive(psc redis.PubSubConn, stop <-chan struct{}) {
	ticker := time.NewTicker(b.ping)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := psc.Ping(""); err != nil {
				return
			}
		}
	}
}
