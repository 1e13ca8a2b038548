package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue memory-based queue implementation. Used for best-effort
// in-process dispatch: publishers never wait on subscriber outcomes.
type MemoryQueue struct {
	topics    map[string]*topic
	config    *MemoryQueueConfig
	mu        sync.RWMutex
	closed    bool
	published int64
	dropped   int64
}

type topic struct {
	name     string
	messages chan []byte
}

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config *MemoryQueueConfig) *MemoryQueue {
	if config == nil {
		config = &MemoryQueueConfig{
			BufferSize: 1000,
			Timeout:    5 * time.Second,
		}
	}
	return &MemoryQueue{
		topics: make(map[string]*topic),
		config: config,
	}
}

func (mq *MemoryQueue) getOrCreateTopic(name string) *topic {
	t, exists := mq.topics[name]
	if !exists {
		t = &topic{
			name:     name,
			messages: make(chan []byte, mq.config.BufferSize),
		}
		mq.topics[name] = t
	}
	return t
}

// Publish publishes a message to the queue
func (mq *MemoryQueue) Publish(ctx context.Context, name string, message []byte) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return ErrQueueClosed
	}

	t := mq.getOrCreateTopic(name)

	select {
	case t.messages <- message:
		mq.published++
		return nil
	case <-ctx.Done():
		mq.dropped++
		return ctx.Err()
	case <-time.After(mq.config.Timeout):
		mq.dropped++
		return ErrPublishTimeout
	}
}

// Subscribe subscribes to messages from the queue. The handler runs on a
// dedicated goroutine until ctx is cancelled; handler errors do not stop
// consumption.
func (mq *MemoryQueue) Subscribe(ctx context.Context, name string, handler MessageHandler) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return ErrQueueClosed
	}

	t := mq.getOrCreateTopic(name)

	go func() {
		for {
			select {
			case message, ok := <-t.messages:
				if !ok {
					return
				}
				if err := handler(ctx, name, message); err != nil {
					// Handler is responsible for logging; keep consuming.
					continue
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Close closes the queue connections
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil
	}
	mq.closed = true

	for _, t := range mq.topics {
		close(t.messages)
	}
	mq.topics = make(map[string]*topic)

	return nil
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// GetStats returns queue statistics
func (mq *MemoryQueue) GetStats() *Stats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	return &Stats{
		Topics:    len(mq.topics),
		Published: mq.published,
		Dropped:   mq.dropped,
		Connected: !mq.closed,
	}
}
