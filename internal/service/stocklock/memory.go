package stocklock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jastip/internal/model"
	"jastip/pkg/log"
)

// Health thresholds. Past the critical line the in-process store has
// outgrown single-process storage and needs externalizing.
const (
	warnActiveLocks     = 100
	criticalActiveLocks = 500
	warnMemoryBytes     = 10 << 20
	criticalMemoryBytes = 50 << 20
	warnExpiredRatio    = 0.20
)

// reservationEntry table slot. pending marks a reservation whose durable
// decrements are still in flight; pending entries pin the order id against
// duplicate locks but are invisible to release and sweep.
type reservationEntry struct {
	res     Reservation
	pending bool
}

// memoryLocker in-process reservation table implementation. The mutex guards
// only the map; durable stock I/O runs outside it so slow store calls for one
// order never stall operations on another.
type memoryLocker struct {
	mu           sync.Mutex
	reservations map[uint64]*reservationEntry
	stock        StockStore
	ttl          time.Duration

	now func() time.Time // injectable clock for tests
}

// NewMemoryLocker creates an in-process reservation store
func NewMemoryLocker(stock StockStore, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryLocker{
		reservations: make(map[uint64]*reservationEntry),
		stock:        stock,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Lock reserves stock for an order
func (l *memoryLocker) Lock(ctx context.Context, orderID uint64, items []Item) error {
	now := l.now()
	reserved := make([]Item, len(items))
	copy(reserved, items)

	l.mu.Lock()
	if _, exists := l.reservations[orderID]; exists {
		l.mu.Unlock()
		return ErrAlreadyLocked
	}
	entry := &reservationEntry{
		res: Reservation{
			OrderID:   orderID,
			Items:     reserved,
			CreatedAt: now,
			ExpiresAt: now.Add(l.ttl),
		},
		pending: true,
	}
	l.reservations[orderID] = entry
	l.mu.Unlock()

	// Check phase: every goods item must be available before anything is
	// mutated, so a failing multi-item order decrements nothing.
	for _, item := range items {
		if item.ProductType == model.ProductTypeTasks {
			continue
		}
		product, err := l.stock.GetByID(ctx, item.ProductID)
		if err != nil {
			l.drop(orderID)
			return fmt.Errorf("stock check for product %d: %w", item.ProductID, err)
		}
		if available := product.AvailableStock(); available < item.Quantity {
			l.drop(orderID)
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	// Commit phase: decrement durable stock for goods items. A failure
	// mid-loop (lost race with another process) is compensated so no
	// partial decrement survives.
	for i, item := range items {
		if item.ProductType == model.ProductTypeTasks {
			continue
		}
		if err := l.stock.DecrStock(ctx, item.ProductID, item.Quantity); err != nil {
			l.compensate(ctx, items[:i])
			l.drop(orderID)

			if available := l.refetchStock(ctx, item.ProductID); available >= 0 {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: available,
				}
			}
			return fmt.Errorf("stock decrement for product %d: %w", item.ProductID, err)
		}
	}

	l.mu.Lock()
	entry.pending = false
	l.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"items":      len(items),
		"expires_at": entry.res.ExpiresAt,
	}).Info("Stock locked")

	return nil
}

// drop removes an entry regardless of state
func (l *memoryLocker) drop(orderID uint64) {
	l.mu.Lock()
	delete(l.reservations, orderID)
	l.mu.Unlock()
}

// compensate re-increments items already decremented by a failed Lock
func (l *memoryLocker) compensate(ctx context.Context, committed []Item) {
	for _, item := range committed {
		if item.ProductType == model.ProductTypeTasks {
			continue
		}
		if err := l.stock.IncrStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.WithFields(map[string]interface{}{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
				"error":      err.Error(),
			}).Error("Failed to compensate stock decrement")
		}
	}
}

func (l *memoryLocker) refetchStock(ctx context.Context, productID uint64) int {
	product, err := l.stock.GetByID(ctx, productID)
	if err != nil {
		return -1
	}
	return product.AvailableStock()
}

// Release drops the reservation, optionally restoring durable stock.
// A reservation still committing is left alone; the in-flight Lock owns it.
func (l *memoryLocker) Release(ctx context.Context, orderID uint64, restore bool) error {
	l.mu.Lock()
	entry, exists := l.reservations[orderID]
	if !exists || entry.pending {
		l.mu.Unlock()
		return nil
	}
	delete(l.reservations, orderID)
	l.mu.Unlock()

	if restore {
		l.restoreItems(ctx, orderID, entry.res.Items)
	}

	log.WithFields(map[string]interface{}{
		"order_id": orderID,
		"restore":  restore,
	}).Info("Stock lock released")

	return nil
}

func (l *memoryLocker) restoreItems(ctx context.Context, orderID uint64, items []Item) {
	for _, item := range items {
		if item.ProductType == model.ProductTypeTasks {
			continue
		}
		if err := l.stock.IncrStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.WithFields(map[string]interface{}{
				"order_id":   orderID,
				"product_id": item.ProductID,
				"error":      err.Error(),
			}).Error("Failed to restore stock on release")
		}
	}
}

// Extend pushes the expiry forward
func (l *memoryLocker) Extend(orderID uint64, by time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.reservations[orderID]
	if !exists {
		return false
	}

	if by <= 0 {
		by = DefaultExtension
	}
	entry.res.ExpiresAt = entry.res.ExpiresAt.Add(by)

	log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"expires_at": entry.res.ExpiresAt,
	}).Info("Stock lock extended")

	return true
}

// SweepExpired releases every expired reservation with restoration. Expired
// entries are detached under the mutex first; the restore round-trips run
// without it.
func (l *memoryLocker) SweepExpired(ctx context.Context) int {
	now := l.now()

	l.mu.Lock()
	var expired []*reservationEntry
	for orderID, entry := range l.reservations {
		if !entry.pending && entry.res.ExpiresAt.Before(now) {
			delete(l.reservations, orderID)
			expired = append(expired, entry)
		}
	}
	l.mu.Unlock()

	for _, entry := range expired {
		l.restoreItems(ctx, entry.res.OrderID, entry.res.Items)
	}

	if len(expired) > 0 {
		log.WithFields(map[string]interface{}{
			"count": len(expired),
		}).Info("Expired stock locks swept")
	}

	return len(expired)
}

// IsLocked reports whether an active reservation exists
func (l *memoryLocker) IsLocked(orderID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.reservations[orderID]
	return exists && !entry.pending
}

// ListActive returns a snapshot of all committed reservations
func (l *memoryLocker) ListActive() []Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Reservation, 0, len(l.reservations))
	for _, entry := range l.reservations {
		if entry.pending {
			continue
		}
		items := make([]Item, len(entry.res.Items))
		copy(items, entry.res.Items)
		r := entry.res
		r.Items = items
		out = append(out, r)
	}
	return out
}

// Health derives a load verdict from lock count, estimated footprint and
// the expired-but-unswept ratio.
func (l *memoryLocker) Health() *HealthReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	active := len(l.reservations)
	expired := 0
	var estimated int64
	for _, entry := range l.reservations {
		if !entry.pending && entry.res.ExpiresAt.Before(now) {
			expired++
		}
		estimated += 256 + 64*int64(len(entry.res.Items))
	}

	report := &HealthReport{
		Status:         HealthStatusHealthy,
		ActiveLocks:    active,
		ExpiredPending: expired,
		EstimatedBytes: estimated,
		CheckedAt:      now,
	}

	if active > criticalActiveLocks || estimated > criticalMemoryBytes {
		report.Status = HealthStatusCritical
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("load exceeds single-process capacity: %d active locks, ~%d bytes", active, estimated))
		report.Recommendation = "externalize the reservation store to a shared, durable lock service"
		return report
	}

	if active > warnActiveLocks {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("high active lock count: %d", active))
	}
	if estimated > warnMemoryBytes {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("reservation table footprint ~%d bytes", estimated))
	}
	if active > 0 {
		if ratio := float64(expired) / float64(active); ratio > warnExpiredRatio {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%.0f%% of reservations expired but unswept; check the sweeper", ratio*100))
		}
	}

	if len(report.Warnings) > 0 {
		report.Status = HealthStatusWarning
		report.Recommendation = "monitor load; consider externalizing the reservation store"
	}

	return report
}
