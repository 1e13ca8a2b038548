package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"gorm.io/gorm"

	"jastip/internal/model"
	"jastip/pkg/log"
)

// ErrInsufficientStock durable stock is lower than the requested quantity
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrProductNotFound product does not exist
var ErrProductNotFound = errors.New("product not found")

// ProductRepository product repository interface
type ProductRepository interface {
	// Create product
	Create(ctx context.Context, product *model.Product) error

	// Get product by ID
	GetByID(ctx context.Context, id uint64) (*model.Product, error)

	// Decrement stock (atomic, fails when stock would go negative)
	DecrStock(ctx context.Context, id uint64, quantity int) error

	// Increment stock
	IncrStock(ctx context.Context, id uint64, quantity int) error

	// WarmLookupFilter preloads known product IDs into the negative-lookup filter
	WarmLookupFilter(ctx context.Context) error
}

// productRepository product repository implementation. A bloom filter in
// front of GetByID short-circuits lookups of IDs that were never created,
// so bad requests do not reach the database.
type productRepository struct {
	db     *gorm.DB
	filter *bloom.BloomFilter
	mu     sync.RWMutex
	warmed bool
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{
		db:     db,
		filter: bloom.NewWithEstimates(100000, 0.01),
	}
}

// Create creates a product
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return err
	}

	r.mu.Lock()
	r.filter.Add(idBytes(product.ID))
	r.mu.Unlock()

	return nil
}

// GetByID gets a product by ID
func (r *productRepository) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	r.mu.RLock()
	if r.warmed && !r.filter.Test(idBytes(id)) {
		r.mu.RUnlock()
		return nil, ErrProductNotFound
	}
	r.mu.RUnlock()

	var product model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// DecrStock decrements stock (atomic operation). Products without tracked
// stock are rejected; the guard clause keeps the counter non-negative.
func (r *productRepository) DecrStock(ctx context.Context, id uint64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncrStock increments stock
func (r *productRepository) IncrStock(ctx context.Context, id uint64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock IS NOT NULL", id).
		Update("stock", gorm.Expr("stock + ?", quantity)).Error
}

// WarmLookupFilter preloads all product IDs into the bloom filter
func (r *productRepository) WarmLookupFilter(ctx context.Context) error {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Pluck("id", &ids).Error; err != nil {
		return err
	}

	r.mu.Lock()
	for _, id := range ids {
		r.filter.Add(idBytes(id))
	}
	r.warmed = true
	r.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"count": len(ids),
	}).Info("Product lookup filter warmed")

	return nil
}

func idBytes(id uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(id >> (8 * i))
	}
	return b
}
