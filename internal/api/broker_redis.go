package api

import (
    "context"
    "encoding/json"
    "time"

    redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
    Subscribe(batchID string) chan SSEEvent
    Unsubscribe(batchID string, ch chan SSEEvent)
    Publish(batchID string, evt SSEEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so progress
// streams survive a multi-instance deployment.
type RedisBroker struct {
    rdb *redis.Client
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    return &RedisBroker{rdb: redis.NewClient(opt)}, nil
}

func (b *RedisBroker) Subscribe(batchID string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(batchID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

func (b *RedisBroker) Unsubscribe(batchID string, ch chan SSEEvent) {
    // closing the channel is enough; the goroutine exits when the
    // underlying PubSub channel closes
    close(ch)
}

func (b *RedisBroker) Publish(batchID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(batchID), data).Err()
}

func (b *RedisBroker) chanName(batchID string) string { return "batch:" + batchID }
