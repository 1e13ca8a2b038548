package model

import "time"

// DefaultDPPercent down-payment percentage used when a trip has none configured
const DefaultDPPercent = 20

// Trip a seller-defined shopping batch that groups products and configures
// payment terms.
type Trip struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID uint64 `gorm:"type:bigint unsigned;not null;index" json:"seller_id"`

	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Destination string     `gorm:"type:varchar(200)" json:"destination"`
	ClosesAt    *time.Time `gorm:"type:timestamp" json:"closes_at,omitempty"`

	// DPPercent down-payment percentage collected up front; 0 means the
	// platform default applies.
	DPPercent int `gorm:"type:int;not null;default:0" json:"dp_percent"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Trip) TableName() string {
	return "trips"
}

// EffectiveDPPercent returns the configured DP percentage or the default
func (t *Trip) EffectiveDPPercent() int {
	if t.DPPercent <= 0 {
		return DefaultDPPercent
	}
	return t.DPPercent
}
