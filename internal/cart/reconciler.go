package cart

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

// DefaultMaxQuantity caps the bag count sent to the backend.
const DefaultMaxQuantity = 99

type WarningType string

const (
	WarningClampedToMin      WarningType = "clamped_to_min"
	WarningClampedToMax      WarningType = "clamped_to_max"
	WarningStrayLinesRemoved WarningType = "stray_lines_removed"
	WarningCartReplaced      WarningType = "cart_replaced"
)

// Warning is a non-fatal note attached to a result.
type Warning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
}

type Warnings []Warning

func appendWarning(warnings Warnings, warningType WarningType, message string) Warnings {
	return append(warnings, Warning{Type: warningType, Message: message})
}

// Outcome describes what one SetQuantity call did.
type Outcome struct {
	Cart      *shopify.Cart
	Target    int
	Clamped   bool
	Created   bool
	Mutations int
	Warnings  Warnings
}

// Reconciler turns "the user wants N bags" into the minimal backend mutations
// for a cart holding at most one line of the bundle variant.
type Reconciler struct {
	backend     Backend
	variantID   string
	maxQuantity int
}

func NewReconciler(backend Backend, variantID string, maxQuantity int) (*Reconciler, error) {
	if backend == nil {
		return nil, fmt.Errorf("cart backend required")
	}
	if strings.TrimSpace(variantID) == "" {
		return nil, fmt.Errorf("bundle variant id required")
	}
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	return &Reconciler{backend: backend, variantID: variantID, maxQuantity: maxQuantity}, nil
}

func (r *Reconciler) VariantID() string {
	return r.variantID
}

func (r *Reconciler) MaxQuantity() int {
	return r.maxQuantity
}

// Lookup fetches a cart. An empty ID or one the backend forgot yields nil.
func (r *Reconciler) Lookup(ctx context.Context, cartID string) (*shopify.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, nil
	}
	return r.backend.CartGet(ctx, cartID)
}

// EnsureCart returns the known cart or creates one.
func (r *Reconciler) EnsureCart(ctx context.Context, cartID string) (*shopify.Cart, bool, error) {
	cart, err := r.Lookup(ctx, cartID)
	if err != nil {
		return nil, false, err
	}
	if cart != nil {
		return cart, false, nil
	}
	created, err := r.backend.CartCreate(ctx)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// SetQuantity drives the cart to exactly target bags of the bundle variant.
// Repeating a call with the same target issues no mutations.
func (r *Reconciler) SetQuantity(ctx context.Context, cartID string, target int) (*Outcome, error) {
	out := &Outcome{}
	out.Target, out.Clamped, out.Warnings = r.clamp(target)

	cart, err := r.Lookup(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		if out.Target == 0 {
			return out, nil
		}
		if cart, err = r.backend.CartCreate(ctx); err != nil {
			return nil, err
		}
		out.Created = true
		if cartID != "" {
			out.Warnings = appendWarning(out.Warnings, WarningCartReplaced, "previous cart expired; a new cart was created")
		}
	}
	return r.apply(ctx, cart, out)
}

// SetQuantityOn reconciles an already loaded cart, skipping the lookup.
func (r *Reconciler) SetQuantityOn(ctx context.Context, cart *shopify.Cart, target int) (*Outcome, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart required")
	}
	out := &Outcome{}
	out.Target, out.Clamped, out.Warnings = r.clamp(target)
	return r.apply(ctx, cart, out)
}

func (r *Reconciler) apply(ctx context.Context, cart *shopify.Cart, out *Outcome) (*Outcome, error) {
	plan := planMutations(cart.Lines, r.variantID, out.Target)
	if plan.strays > 0 {
		out.Warnings = appendWarning(out.Warnings, WarningStrayLinesRemoved,
			fmt.Sprintf("removed %d line(s) for other products", plan.strays))
	}

	if len(plan.updates) > 0 {
		updated, err := r.backend.CartLinesUpdate(ctx, cart.ID, plan.updates)
		if err != nil {
			return nil, err
		}
		out.Mutations++
		cart = updated
	}
	if plan.add != nil {
		added, err := r.backend.CartLinesAdd(ctx, cart.ID, []shopify.LineInput{*plan.add})
		if err != nil {
			return nil, err
		}
		out.Mutations++
		cart = added
	}

	out.Cart = cart
	return out, nil
}

func (r *Reconciler) clamp(target int) (int, bool, Warnings) {
	var warnings Warnings
	switch {
	case target < 0:
		warnings = appendWarning(warnings, WarningClampedToMin, "quantity raised to 0")
		return 0, true, warnings
	case target > r.maxQuantity:
		warnings = appendWarning(warnings, WarningClampedToMax, fmt.Sprintf("quantity reduced to max allowed (%d)", r.maxQuantity))
		return r.maxQuantity, true, warnings
	default:
		return target, false, warnings
	}
}

type mutationPlan struct {
	// updates lists removals (quantity 0) before the canonical update.
	updates []shopify.LineUpdate
	add     *shopify.LineInput
	strays  int
}

// planMutations diffs the cart lines against the target. Lines for other
// variants and duplicate bundle lines are zeroed; the first bundle line is
// updated, or a line is added when none exists. lines must be the full set;
// the Shopify client pages past the first connection page.
func planMutations(lines []shopify.Line, variantID string, target int) mutationPlan {
	var (
		plan      mutationPlan
		removes   []shopify.LineUpdate
		canonical *shopify.Line
	)

	for i := range lines {
		line := lines[i]
		if line.Quantity <= 0 {
			continue
		}
		if line.VariantID != variantID {
			removes = append(removes, shopify.LineUpdate{ID: line.ID, Quantity: 0})
			plan.strays++
			continue
		}
		if canonical == nil {
			canonical = &lines[i]
			continue
		}
		removes = append(removes, shopify.LineUpdate{ID: line.ID, Quantity: 0})
	}

	switch {
	case canonical == nil && target > 0:
		plan.add = &shopify.LineInput{VariantID: variantID, Quantity: target}
	case canonical != nil && target == 0:
		removes = append(removes, shopify.LineUpdate{ID: canonical.ID, Quantity: 0})
	case canonical != nil && canonical.Quantity != target:
		plan.updates = append(plan.updates, shopify.LineUpdate{ID: canonical.ID, Quantity: target})
	}

	plan.updates = append(removes, plan.updates...)
	return plan
}

// BagCount sums the bundle variant quantity in a cart.
func BagCount(cart *shopify.Cart, variantID string) int {
	if cart == nil {
		return 0
	}
	total := 0
	for _, line := range cart.Lines {
		if line.VariantID == variantID {
			total += line.Quantity
		}
	}
	return total
}
