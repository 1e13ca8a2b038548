package queue

import (
	"context"
	"errors"
)

// Queue defines the interface for message queue operations
type Queue interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe subscribes to messages from the specified topic
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Close closes the queue connections
	Close() error

	// Health checks the health of the queue
	Health() error
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// Stats represents queue statistics
type Stats struct {
	Topics    int   `json:"topics"`
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Connected bool  `json:"connected"`
}

// Common errors
var (
	ErrQueueClosed    = errors.New("queue is closed")
	ErrPublishTimeout = errors.New("publish timeout")
)
