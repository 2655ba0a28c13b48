package models

import "time"

// DefaultPricingScheduleID is the row seeded by the bundle pricing migration.
const DefaultPricingScheduleID = "default"

// BundlePricing is the header row of a bag discount schedule.
type BundlePricing struct {
	ID                    string            `gorm:"column:id;primaryKey"`
	BasePriceCents        int64             `gorm:"column:base_price_cents;not null"`
	FreeShippingThreshold int               `gorm:"column:free_shipping_threshold;not null"`
	MinPerUnitCents       int64             `gorm:"column:min_per_unit_cents;not null"`
	Currency              string            `gorm:"column:currency;not null"`
	Tiers                 []BundlePriceTier `gorm:"foreignKey:ScheduleID;references:ID"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (BundlePricing) TableName() string { return "bundle_pricing" }

// BundlePriceTier captures one breakpoint of a schedule.
type BundlePriceTier struct {
	ScheduleID     string `gorm:"column:schedule_id;primaryKey"`
	MinQty         int    `gorm:"column:min_qty;primaryKey"`
	UnitPriceCents int64  `gorm:"column:unit_price_cents;not null"`
}

func (BundlePriceTier) TableName() string { return "bundle_price_tiers" }
