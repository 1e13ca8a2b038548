package stocklock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jastip/internal/model"
)

// DefaultTTL reservation window between seller acceptance and the buyer's
// final payment proof.
const DefaultTTL = 30 * time.Minute

// DefaultExtension applied when a reservation is extended without an
// explicit duration.
const DefaultExtension = 10 * time.Minute

// ErrAlreadyLocked a reservation already exists for the order
var ErrAlreadyLocked = errors.New("stock already locked for order")

// Item a reserved product line
type Item struct {
	ProductID   uint64            `json:"product_id"`
	ProductType model.ProductType `json:"product_type"`
	Quantity    int               `json:"quantity"`
}

// Reservation a time-bounded stock hold for one order. A reservation exists
// if and only if the matching durable stock decrements have been applied.
type Reservation struct {
	OrderID   uint64    `json:"order_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InsufficientStockError reports the failing product of a rejected lock
type InsufficientStockError struct {
	ProductID uint64 `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Error implement error interface
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// HealthStatus verdict derived from store load
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// HealthReport diagnostic snapshot of the reservation store
type HealthReport struct {
	Status         HealthStatus `json:"status"`
	ActiveLocks    int          `json:"active_locks"`
	ExpiredPending int          `json:"expired_pending"`
	EstimatedBytes int64        `json:"estimated_bytes"`
	Warnings       []string     `json:"warnings,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}

// StockStore durable product stock counters the reservation table stays in
// sync with.
type StockStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	DecrStock(ctx context.Context, id uint64, quantity int) error
	IncrStock(ctx context.Context, id uint64, quantity int) error
}

// Locker stock reservation store interface. The in-process implementation
// can be swapped for a shared, durable backend without touching callers.
type Locker interface {
	// Lock reserves stock for an order: check all items first, then write
	// the reservation, then decrement durable stock. No partial commits.
	Lock(ctx context.Context, orderID uint64, items []Item) error

	// Release drops the reservation. With restore, durable stock for goods
	// items is re-incremented first. No-op when no reservation exists.
	Release(ctx context.Context, orderID uint64, restore bool) error

	// Extend pushes the expiry forward. Returns false when no reservation
	// exists.
	Extend(orderID uint64, by time.Duration) bool

	// SweepExpired releases (with restore) every expired reservation and
	// returns the count. Safe to run concurrently; idempotent.
	SweepExpired(ctx context.Context) int

	// IsLocked reports whether an active reservation exists for the order
	IsLocked(orderID uint64) bool

	// ListActive returns a snapshot of all reservations
	ListActive() []Reservation

	// Health derives a load verdict for operational tooling
	Health() *HealthReport
}
