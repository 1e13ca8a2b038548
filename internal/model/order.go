package model

import (
	"errors"
	"time"
)

// OrderStatus order lifecycle status
type OrderStatus string

const (
	// OrderStatusPendingDP order placed, waiting for down payment proof
	OrderStatusPendingDP OrderStatus = "pending_dp"
	// OrderStatusAwaitingValidation DP confirmed, waiting for seller validation
	OrderStatusAwaitingValidation OrderStatus = "awaiting_validation"
	// OrderStatusAwaitingFinalPayment accepted, waiting for final payment proof
	OrderStatusAwaitingFinalPayment OrderStatus = "awaiting_final_payment"
	// OrderStatusAwaitingFinalValidation final proof uploaded, waiting for seller
	OrderStatusAwaitingFinalValidation OrderStatus = "awaiting_final_validation"
	// OrderStatusPaid settled, terminal
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusRejected rejected by the seller, terminal
	OrderStatusRejected OrderStatus = "rejected"
)

// Order order model
type Order struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderCode string `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_code"`

	// Exactly one of ParticipantID / GuestID is set.
	ParticipantID *uint64 `gorm:"type:bigint unsigned;index" json:"participant_id,omitempty"`
	GuestID       *string `gorm:"type:varchar(64);index" json:"guest_id,omitempty"`

	TripID uint64 `gorm:"type:bigint unsigned;not null;index" json:"trip_id"`

	// Money fields in integer rupiah.
	TotalPrice         int64 `gorm:"type:bigint;not null;default:0" json:"total_price"`
	DPAmount           int64 `gorm:"type:bigint;not null;default:0" json:"dp_amount"`
	FinalAmount        int64 `gorm:"type:bigint;not null;default:0" json:"final_amount"`
	ShippingFee        int64 `gorm:"type:bigint;not null;default:0" json:"shipping_fee"`
	ServiceFee         int64 `gorm:"type:bigint;not null;default:0" json:"service_fee"`
	PlatformCommission int64 `gorm:"type:bigint;not null;default:0" json:"platform_commission"`

	// FinalBreakdown is a serialized snapshot of the accepted price
	// breakdown. Written once at acceptance, never recomputed.
	FinalBreakdown *string `gorm:"type:text" json:"final_breakdown,omitempty"`

	Status          OrderStatus `gorm:"type:varchar(32);not null;default:'pending_dp';index" json:"status"`
	DPPaidAt        *time.Time  `gorm:"type:timestamp" json:"dp_paid_at,omitempty"`
	ValidatedAt     *time.Time  `gorm:"type:timestamp" json:"validated_at,omitempty"`
	ValidatedBy     *uint64     `gorm:"type:bigint unsigned" json:"validated_by,omitempty"`
	RejectionReason *string     `gorm:"type:varchar(500)" json:"rejection_reason,omitempty"`

	// Proof references are written by the upload collaborator.
	DPProofURL    *string `gorm:"type:varchar(255)" json:"dp_proof_url,omitempty"`
	FinalProofURL *string `gorm:"type:varchar(255)" json:"final_proof_url,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`

	Trip  *Trip       `gorm:"foreignKey:TripID" json:"trip,omitempty"`
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// OrderItem order line item. Price and markup policy are frozen snapshots
// taken from the product at order time.
type OrderItem struct {
	ID           uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      uint64      `gorm:"type:bigint unsigned;not null;index" json:"order_id"`
	ProductID    uint64      `gorm:"type:bigint unsigned;not null;index" json:"product_id"`
	ProductType  ProductType `gorm:"type:varchar(16);not null" json:"product_type"`
	PriceAtOrder int64       `gorm:"type:bigint;not null" json:"price_at_order"`
	Quantity     int         `gorm:"type:int;not null" json:"quantity"`
	MarkupType   MarkupType  `gorm:"type:varchar(16);not null" json:"markup_type"`
	MarkupValue  int64       `gorm:"type:bigint;not null;default:0" json:"markup_value"`
	WeightGram   int         `gorm:"type:int;not null;default:0" json:"weight_gram"`
	CreatedAt    time.Time   `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName set name
func (OrderItem) TableName() string {
	return "order_items"
}

// ErrAmbiguousBuyer order must reference exactly one buyer identity
var ErrAmbiguousBuyer = errors.New("order must have exactly one of participant_id or guest_id")

// ValidateBuyer checks the participant-XOR-guest invariant
func (o *Order) ValidateBuyer() error {
	hasParticipant := o.ParticipantID != nil
	hasGuest := o.GuestID != nil && *o.GuestID != ""
	if hasParticipant == hasGuest {
		return ErrAmbiguousBuyer
	}
	return nil
}

// CanValidate check whether seller validation is permitted
func (o *Order) CanValidate() bool {
	return o.Status == OrderStatusAwaitingValidation
}

// CanValidateFinal check whether final-payment validation is permitted
func (o *Order) CanValidateFinal() bool {
	return o.Status == OrderStatusAwaitingFinalValidation
}

// IsTerminal check whether the order reached a terminal status
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusRejected
}

// HasGoodsItem reports whether any line item is a physical goods item
func (o *Order) HasGoodsItem() bool {
	for _, item := range o.Items {
		if item.ProductType == ProductTypeGoods {
			return true
		}
	}
	return false
}

// SellerID returns the owning seller, resolved through the trip
func (o *Order) SellerID() uint64 {
	if o.Trip == nil {
		return 0
	}
	return o.Trip.SellerID
}
