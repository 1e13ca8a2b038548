package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryQueue_PublishSubscribe(t *testing.T) {
	mq := NewMemoryQueue(nil)
	defer mq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int64
	err := mq.Subscribe(ctx, "orders.validated", func(ctx context.Context, topic string, message []byte) error {
		atomic.AddInt64(&received, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := mq.Publish(ctx, "orders.validated", []byte("msg")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&received) < 10 {
		select {
		case <-deadline:
			t.Fatalf("received %d messages, want 10", atomic.LoadInt64(&received))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMemoryQueue_HandlerErrorDoesNotStopConsumption(t *testing.T) {
	mq := NewMemoryQueue(nil)
	defer mq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int64
	mq.Subscribe(ctx, "orders.rejected", func(ctx context.Context, topic string, message []byte) error {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			return errors.New("smtp unreachable")
		}
		return nil
	})

	mq.Publish(ctx, "orders.rejected", []byte("a"))
	mq.Publish(ctx, "orders.rejected", []byte("b"))

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&calls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want 2", atomic.LoadInt64(&calls))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	mq := NewMemoryQueue(nil)
	mq.Close()

	if err := mq.Publish(context.Background(), "t", []byte("x")); err != ErrQueueClosed {
		t.Errorf("Publish after close = %v, want ErrQueueClosed", err)
	}
	if err := mq.Health(); err != ErrQueueClosed {
		t.Errorf("Health after close = %v, want ErrQueueClosed", err)
	}
	if stats := mq.GetStats(); stats.Connected {
		t.Error("stats.Connected = true after close")
	}
}
