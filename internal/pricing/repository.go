package pricing

import (
	"context"
	stdErrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgdb "github.com/sweetdrop/storefront-api/pkg/db"
	"github.com/sweetdrop/storefront-api/pkg/db/models"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/money"
)

// Repository reads and replaces discount schedules stored in the database.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindSchedule loads a schedule header with its tiers ascending by quantity.
func (r *Repository) FindSchedule(ctx context.Context, id string) (*models.BundlePricing, error) {
	var schedule models.BundlePricing
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_qty ASC")
		}).
		First(&schedule, "id = ?", id).
		Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pricing schedule not found").
				WithDetails(map[string]any{"schedule_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pricing schedule")
	}
	return &schedule, nil
}

// LoadTable reads a schedule and validates it into a Table.
func (r *Repository) LoadTable(ctx context.Context, id string) (*Table, error) {
	schedule, err := r.FindSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	tiers := make([]PriceTier, 0, len(schedule.Tiers))
	for _, tier := range schedule.Tiers {
		tiers = append(tiers, PriceTier{Quantity: tier.MinQty, PerUnitCents: money.Cents(tier.UnitPriceCents)})
	}
	return NewTable(TableParams{
		BasePriceCents:        money.Cents(schedule.BasePriceCents),
		FreeShippingThreshold: schedule.FreeShippingThreshold,
		MinPerUnitCents:       money.Cents(schedule.MinPerUnitCents),
		Tiers:                 tiers,
	})
}

// ReplaceTiers swaps every tier of a schedule. The caller owns the transaction.
func (r *Repository) ReplaceTiers(ctx context.Context, id string, tiers []PriceTier) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("schedule_id = ?", id).Delete(&models.BundlePriceTier{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete price tiers")
	}
	if len(tiers) == 0 {
		return nil
	}
	rows := make([]models.BundlePriceTier, 0, len(tiers))
	for _, tier := range tiers {
		rows = append(rows, models.BundlePriceTier{
			ScheduleID:     id,
			MinQty:         tier.Quantity,
			UnitPriceCents: int64(tier.PerUnitCents),
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "duplicate tier quantity").
				WithDetails(map[string]any{"schedule_id": id})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert price tiers")
	}
	return nil
}

// SaveTable writes a validated table as schedule id, creating the header row
// when missing. Run it inside a transaction so the tiers never half-change.
func (r *Repository) SaveTable(ctx context.Context, id, currency string, table *Table) error {
	if table == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pricing table required")
	}
	header := models.BundlePricing{
		ID:                    id,
		BasePriceCents:        int64(table.BasePrice()),
		FreeShippingThreshold: table.FreeShippingThreshold(),
		MinPerUnitCents:       int64(table.MinPerUnit()),
		Currency:              currency,
	}
	err := r.db.WithContext(ctx).
		Omit("Tiers").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"base_price_cents", "free_shipping_threshold", "min_per_unit_cents", "currency", "updated_at"}),
		}).
		Create(&header).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert pricing schedule")
	}
	return r.ReplaceTiers(ctx, id, table.Tiers())
}
