package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

func newTestReconciler(t *testing.T, backend Backend) *Reconciler {
	t.Helper()
	r, err := NewReconciler(backend, bundleVariant, 99)
	require.NoError(t, err)
	return r
}

func TestNewReconcilerValidatesInput(t *testing.T) {
	_, err := NewReconciler(nil, bundleVariant, 99)
	assert.Error(t, err)

	_, err = NewReconciler(newFakeBackend(), " ", 99)
	assert.Error(t, err)

	r, err := NewReconciler(newFakeBackend(), bundleVariant, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxQuantity, r.MaxQuantity())
}

func TestSetQuantityCreatesCartAndAddsLine(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	out, err := r.SetQuantity(context.Background(), "", 5)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, 1, out.Mutations)
	assert.Equal(t, 1, backend.count(shopify.OpCartCreate))
	assert.Equal(t, 1, backend.count(shopify.OpCartLinesAdd))
	require.Len(t, out.Cart.Lines, 1)
	assert.Equal(t, 5, out.Cart.Lines[0].Quantity)
	assert.Equal(t, bundleVariant, out.Cart.Lines[0].VariantID)
}

func TestSetQuantityIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	ctx := context.Background()

	first, err := r.SetQuantity(ctx, "", 5)
	require.NoError(t, err)
	before := backend.mutations()

	second, err := r.SetQuantity(ctx, first.Cart.ID, 5)
	require.NoError(t, err)

	assert.Zero(t, second.Mutations)
	assert.Equal(t, before, backend.mutations(), "repeat call must not touch the backend")
	assert.Equal(t, 1, backend.count(shopify.OpCartCreate))
	require.Len(t, second.Cart.Lines, 1)
	assert.Equal(t, 5, second.Cart.Lines[0].Quantity)
}

func TestSetQuantityReplacesInsteadOfAccumulating(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	ctx := context.Background()

	first, err := r.SetQuantity(ctx, "", 5)
	require.NoError(t, err)

	second, err := r.SetQuantity(ctx, first.Cart.ID, 8)
	require.NoError(t, err)

	require.Len(t, second.Cart.Lines, 1)
	assert.Equal(t, 8, second.Cart.Lines[0].Quantity)
	assert.Equal(t, 8, BagCount(second.Cart, bundleVariant))
	assert.Equal(t, 1, backend.count(shopify.OpCartLinesUpdate))
}

func TestSetQuantityClearsStrayAndDuplicateLines(t *testing.T) {
	backend := newFakeBackend()
	backend.seed("gid://shopify/Cart/legacy",
		shopify.Line{ID: "line-a", VariantID: "gid://shopify/ProductVariant/old-6pack", Quantity: 2},
		shopify.Line{ID: "line-b", VariantID: bundleVariant, Quantity: 3},
		shopify.Line{ID: "line-c", VariantID: bundleVariant, Quantity: 1},
		shopify.Line{ID: "line-d", VariantID: "gid://shopify/ProductVariant/old-12pack", Quantity: 1},
	)
	r := newTestReconciler(t, backend)

	out, err := r.SetQuantity(context.Background(), "gid://shopify/Cart/legacy", 6)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Mutations, "removals and the update share one call")
	assert.Equal(t, 1, backend.count(shopify.OpCartLinesUpdate))
	assert.Zero(t, backend.count(shopify.OpCartLinesAdd))
	require.Len(t, out.Cart.Lines, 1)
	assert.Equal(t, shopify.Line{ID: "line-b", VariantID: bundleVariant, Quantity: 6}, out.Cart.Lines[0])
	require.NotEmpty(t, out.Warnings)
	assert.Equal(t, WarningStrayLinesRemoved, out.Warnings[0].Type)
}

func TestSetQuantityZeroWithoutCartIsNoop(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	out, err := r.SetQuantity(context.Background(), "", 0)
	require.NoError(t, err)

	assert.Nil(t, out.Cart)
	assert.Zero(t, backend.count(shopify.OpCartCreate))
	assert.Zero(t, backend.mutations())
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	backend := newFakeBackend()
	backend.seed("cart-1", shopify.Line{ID: "line-1", VariantID: bundleVariant, Quantity: 4})
	r := newTestReconciler(t, backend)

	out, err := r.SetQuantity(context.Background(), "cart-1", 0)
	require.NoError(t, err)

	assert.Empty(t, out.Cart.Lines)
	assert.Equal(t, "cart-1", out.Cart.ID)
}

func TestSetQuantityClamps(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	ctx := context.Background()

	out, err := r.SetQuantity(ctx, "", 150)
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Equal(t, 99, out.Target)
	assert.Equal(t, 99, BagCount(out.Cart, bundleVariant))
	assert.Equal(t, WarningClampedToMax, out.Warnings[0].Type)

	out, err = r.SetQuantity(ctx, out.Cart.ID, -3)
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Zero(t, out.Target)
	assert.Zero(t, BagCount(out.Cart, bundleVariant))
}

func TestSetQuantityRecreatesExpiredCart(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	out, err := r.SetQuantity(context.Background(), "gid://shopify/Cart/expired", 2)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.NotEqual(t, "gid://shopify/Cart/expired", out.Cart.ID)
	assert.Equal(t, WarningCartReplaced, out.Warnings[len(out.Warnings)-1].Type)
}

func TestSetQuantitySurfacesBackendErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.failOn(shopify.OpCartCreate, pkgerrors.New(pkgerrors.CodeDependency, "commerce backend unreachable"))
	r := newTestReconciler(t, backend)

	_, err := r.SetQuantity(context.Background(), "", 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Zero(t, backend.mutations())
}

func TestPlanMutations(t *testing.T) {
	canonical := shopify.Line{ID: "c", VariantID: bundleVariant, Quantity: 5}
	stray := shopify.Line{ID: "s", VariantID: "other", Quantity: 1}

	cases := []struct {
		name    string
		lines   []shopify.Line
		target  int
		updates []shopify.LineUpdate
		add     *shopify.LineInput
	}{
		{name: "empty cart adds", target: 3, add: &shopify.LineInput{VariantID: bundleVariant, Quantity: 3}},
		{name: "empty cart zero is noop", target: 0},
		{name: "same quantity is noop", lines: []shopify.Line{canonical}, target: 5},
		{name: "update", lines: []shopify.Line{canonical}, target: 2, updates: []shopify.LineUpdate{{ID: "c", Quantity: 2}}},
		{name: "zero removes", lines: []shopify.Line{canonical}, target: 0, updates: []shopify.LineUpdate{{ID: "c", Quantity: 0}}},
		{
			name:    "stray removed before add",
			lines:   []shopify.Line{stray},
			target:  4,
			updates: []shopify.LineUpdate{{ID: "s", Quantity: 0}},
			add:     &shopify.LineInput{VariantID: bundleVariant, Quantity: 4},
		},
		{
			name:    "stray removed before update",
			lines:   []shopify.Line{canonical, stray},
			target:  7,
			updates: []shopify.LineUpdate{{ID: "s", Quantity: 0}, {ID: "c", Quantity: 7}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := planMutations(tc.lines, bundleVariant, tc.target)
			assert.Equal(t, tc.updates, plan.updates)
			assert.Equal(t, tc.add, plan.add)
		})
	}
}
