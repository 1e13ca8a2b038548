package model

import "time"

// ProductType product type
type ProductType string

const (
	// ProductTypeGoods physical goods, stock-checked and shippable
	ProductTypeGoods ProductType = "goods"
	// ProductTypeTasks services/errands, unlimited capacity, never shipped
	ProductTypeTasks ProductType = "tasks"
)

// MarkupType seller markup policy
type MarkupType string

const (
	// MarkupTypePercent markup as a percentage of the item total
	MarkupTypePercent MarkupType = "percent"
	// MarkupTypeFlat markup as a flat amount per unit
	MarkupTypeFlat MarkupType = "flat"
)

// DefaultWeightGram assumed weight when a product has none recorded
const DefaultWeightGram = 1000

// Product product model
type Product struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TripID uint64 `gorm:"type:bigint unsigned;not null;index" json:"trip_id"`

	Name        string      `gorm:"type:varchar(200);not null" json:"name"`
	Price       int64       `gorm:"type:bigint;not null" json:"price"`
	ProductType ProductType `gorm:"type:varchar(16);not null;default:'goods'" json:"product_type"`

	// Stock is NULL for tasks products (unlimited capacity).
	Stock *int `gorm:"type:int" json:"stock,omitempty"`

	MarkupType  MarkupType `gorm:"type:varchar(16);not null;default:'flat'" json:"markup_type"`
	MarkupValue int64      `gorm:"type:bigint;not null;default:0" json:"markup_value"`
	WeightGram  int        `gorm:"type:int;not null;default:0" json:"weight_gram"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// IsStockTracked reports whether stock bookkeeping applies to this product
func (p *Product) IsStockTracked() bool {
	return p.ProductType == ProductTypeGoods
}

// AvailableStock returns the current stock, treating NULL as zero
func (p *Product) AvailableStock() int {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}
