package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    batchID := "b1"
    ch := b.Subscribe(batchID)

    evt := SSEEvent{Type: "batch.progress", Data: map[string]any{"current": 1}}
    b.Publish(batchID, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["current"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(batchID, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("b2")
    defer b.Unsubscribe("b2", ch)
    // channel buffer is 8; publishing more must not block
    for i := 0; i < 20; i++ {
        b.Publish("b2", SSEEvent{Type: "batch.progress", Data: map[string]any{"current": i}})
    }
    if len(ch) != 8 {
        t.Fatalf("expected a full buffer, got %d", len(ch))
    }
}
