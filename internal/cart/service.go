package cart

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sweetdrop/storefront-api/internal/pricing"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
	"github.com/sweetdrop/storefront-api/pkg/money"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

const (
	OpGetCart           = "get_cart"
	OpGetCartID         = "get_cart_id"
	OpSetBundleQuantity = "set_bundle_quantity"
	OpAddToCart         = "add_to_cart"
	OpClearCart         = "clear_cart"

	outcomeOK          = "ok"
	outcomeStale       = "stale"
	outcomeUnavailable = "unavailable"
	outcomeRejected    = "rejected"
	outcomeCanceled    = "canceled"
	outcomeError       = "error"

	msgUnavailable = "The cart is unavailable right now."
	msgBackend     = "We couldn't update your cart. Please try again."
	msgCanceled    = "The request was canceled before the cart was updated."
)

// Result is what every facade operation returns. Failures are values, never
// Go errors: OK=false with a Message the UI can show inline.
type Result struct {
	OK       bool           `json:"ok"`
	CartID   string         `json:"cart_id,omitempty"`
	Cart     *CartView      `json:"cart,omitempty"`
	Message  string         `json:"message,omitempty"`
	Code     pkgerrors.Code `json:"code,omitempty"`
	Details  any            `json:"details,omitempty"`
	Stale    bool           `json:"stale"`
	Clamped  bool           `json:"clamped"`
	Warnings Warnings       `json:"warnings,omitempty"`
}

// CartView is the cart as the storefront renders it.
type CartView struct {
	ID            string          `json:"id,omitempty"`
	CheckoutURL   string          `json:"checkout_url,omitempty"`
	Quantity      int             `json:"quantity"`
	Lines         []LineView      `json:"lines"`
	SubtotalCents money.Cents     `json:"subtotal"`
	Currency      string          `json:"currency,omitempty"`
	Pricing       *pricing.Result `json:"pricing,omitempty"`
}

type LineView struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// Service is the single entry point the HTTP layer uses for carts.
type Service interface {
	GetCart(ctx context.Context, sess *Session) Result
	GetCartID(ctx context.Context, sess *Session) Result
	SetBundleQuantity(ctx context.Context, sess *Session, quantity int) Result
	AddToCart(ctx context.Context, sess *Session, quantity int) Result
	ClearCart(ctx context.Context, sess *Session) Result
	Available() bool
}

// ServiceConfig wires the facade. A nil Backend or empty VariantID leaves the
// service in unavailable mode instead of failing construction.
type ServiceConfig struct {
	Backend        Backend
	VariantID      string
	MaxQuantity    int
	DebounceWindow time.Duration
	Pricer         Pricer
	Sequencer      Sequencer
	Recorder       Recorder
	Logger         *logger.Logger
}

type service struct {
	reconciler *Reconciler
	pricer     Pricer
	sequencer  Sequencer
	recorder   Recorder
	logg       *logger.Logger
	debounce   time.Duration
	creates    singleflight.Group
	addLocks   [64]sync.Mutex
}

// NewService builds the cart facade.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if cfg.DebounceWindow < 0 {
		return nil, fmt.Errorf("debounce window cannot be negative")
	}

	svc := &service{
		pricer:    cfg.Pricer,
		sequencer: cfg.Sequencer,
		recorder:  cfg.Recorder,
		logg:      cfg.Logger,
		debounce:  cfg.DebounceWindow,
	}
	if svc.sequencer == nil {
		svc.sequencer = NewMemorySequencer()
	}
	if svc.logg == nil {
		svc.logg = logger.New(logger.Options{ServiceName: "cart", Output: io.Discard})
	}

	if cfg.Backend != nil && strings.TrimSpace(cfg.VariantID) != "" {
		reconciler, err := NewReconciler(cfg.Backend, cfg.VariantID, cfg.MaxQuantity)
		if err != nil {
			return nil, err
		}
		svc.reconciler = reconciler
	}
	return svc, nil
}

func (s *service) Available() bool {
	return s.reconciler != nil
}

func (s *service) GetCart(ctx context.Context, sess *Session) Result {
	if !s.Available() {
		return s.unavailable(OpGetCart)
	}
	ctx = s.logg.WithSessionID(ctx, sess.ID())

	cartID, err := sess.CartID(ctx)
	if err != nil {
		return s.failure(ctx, OpGetCart, err)
	}
	if cartID == "" {
		return s.success(OpGetCart, Result{OK: true, Cart: s.view(nil)})
	}

	ctx = s.logg.WithCartID(ctx, cartID)
	cart, err := s.reconciler.Lookup(ctx, cartID)
	if err != nil {
		return s.failure(ctx, OpGetCart, err)
	}
	result := Result{OK: true, CartID: cartID, Cart: s.view(cart)}
	if cart == nil {
		result.CartID = ""
		result.Warnings = appendWarning(result.Warnings, WarningCartReplaced, "your previous cart expired")
		s.logg.Info(ctx, "stored cart no longer exists")
	}
	return s.success(OpGetCart, result)
}

func (s *service) GetCartID(ctx context.Context, sess *Session) Result {
	if !s.Available() {
		return s.unavailable(OpGetCartID)
	}
	cartID, err := sess.CartID(ctx)
	if err != nil {
		return s.failure(s.logg.WithSessionID(ctx, sess.ID()), OpGetCartID, err)
	}
	return s.success(OpGetCartID, Result{OK: true, CartID: cartID})
}

func (s *service) SetBundleQuantity(ctx context.Context, sess *Session, quantity int) Result {
	return s.mutate(ctx, sess, OpSetBundleQuantity, 0, nil, func(int, int) int {
		return quantity
	})
}

// AddToCart behaves like SetBundleQuantity on an empty cart and adds to the
// current bag count otherwise. Adds are cumulative under the debounce: a
// superseded add leaves its bags queued and the call that wins applies them.
func (s *service) AddToCart(ctx context.Context, sess *Session, quantity int) Result {
	var warnings Warnings
	if quantity < 1 {
		warnings = appendWarning(warnings, WarningClampedToMin, "quantity raised to 1")
		quantity = 1
	}
	return s.mutate(ctx, sess, OpAddToCart, quantity, warnings, func(current, added int) int {
		return current + added
	})
}

func (s *service) ClearCart(ctx context.Context, sess *Session) Result {
	return s.mutate(ctx, sess, OpClearCart, 0, nil, func(int, int) int {
		return 0
	})
}

// mutate runs the sequenced, debounced reconcile shared by every write. add
// is the bag delta of an additive write and 0 for writes that set a final
// value; targetFor receives the current bag count and the bags claimed from
// the queue.
func (s *service) mutate(ctx context.Context, sess *Session, op string, add int, warnings Warnings, targetFor func(current, added int) int) Result {
	if !s.Available() {
		return s.unavailable(op)
	}
	ctx = s.logg.WithFields(s.logg.WithSessionID(ctx, sess.ID()), map[string]any{"operation": op})

	token := s.nextToken(ctx, sess, add)
	if err := s.wait(ctx); err != nil {
		if add == 0 || token == 0 {
			s.record(op, outcomeCanceled)
			return Result{OK: false, Code: pkgerrors.CodeInternal, Message: msgCanceled}
		}
		// The bags are already queued; finishing keeps a retry from adding them twice.
		ctx = context.WithoutCancel(ctx)
	}

	added, won := s.claim(ctx, sess, token, add)
	if !won {
		return s.stale(op, Result{OK: true})
	}
	if add > 0 {
		unlock := s.lockSession(sess.ID())
		defer unlock()
	}

	cartID, err := sess.CartID(ctx)
	if err != nil {
		return s.failure(ctx, op, err)
	}
	if cartID != "" {
		ctx = s.logg.WithCartID(ctx, cartID)
	}

	cart, err := s.reconciler.Lookup(ctx, cartID)
	if err != nil {
		return s.failure(ctx, op, err)
	}

	// warnings so far only ever report clamping of the input.
	inputClamped := len(warnings) > 0
	target := targetFor(BagCount(cart, s.reconciler.VariantID()), added)
	target, clamped, clampWarnings := s.reconciler.clamp(target)
	clamped = clamped || inputClamped
	warnings = append(warnings, clampWarnings...)

	if cart == nil {
		if target == 0 {
			return s.success(op, Result{OK: true, Cart: s.view(nil), Clamped: clamped, Warnings: warnings})
		}
		if cart, err = s.createCart(ctx, sess); err != nil {
			return s.failure(ctx, op, err)
		}
		if cartID != "" {
			warnings = appendWarning(warnings, WarningCartReplaced, "previous cart expired; a new cart was created")
		}
		cartID = cart.ID
	}

	outcome, err := s.reconciler.SetQuantityOn(ctx, cart, target)
	if err != nil {
		return s.failure(ctx, op, err)
	}

	if outcome.Cart.ID != cartID {
		s.persist(ctx, sess, outcome.Cart.ID)
	}

	result := Result{
		OK:       true,
		CartID:   outcome.Cart.ID,
		Cart:     s.view(outcome.Cart),
		Clamped:  clamped,
		Warnings: append(warnings, outcome.Warnings...),
	}
	if s.superseded(ctx, sess, token) {
		return s.stale(op, result)
	}
	return s.success(op, result)
}

// createCart collapses concurrent first writes of one session onto a single
// CartCreate.
func (s *service) createCart(ctx context.Context, sess *Session) (*shopify.Cart, error) {
	// The flight outlives its first caller; a canceled request must not fail
	// the others sharing it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.creates.Do(sess.ID(), func() (any, error) {
		cart, _, err := s.reconciler.EnsureCart(flightCtx, "")
		return cart, err
	})
	if err != nil {
		return nil, err
	}
	cart := v.(*shopify.Cart)
	if shared {
		s.logg.Debug(ctx, "cart creation shared with a concurrent request")
	}
	s.persist(ctx, sess, cart.ID)
	return cart, nil
}

// persist dual-writes the cart ID. A store failure is logged; the cookie still
// carries the ID.
func (s *service) persist(ctx context.Context, sess *Session, cartID string) {
	if err := sess.Persist(ctx, cartID); err != nil {
		s.logg.Error(s.logg.WithCartID(ctx, cartID), "failed to persist cart id", err)
	}
}

func (s *service) nextToken(ctx context.Context, sess *Session, add int) int64 {
	token, err := s.sequencer.Next(ctx, sess.ID(), add)
	if err != nil {
		s.logg.Warn(ctx, "cart sequencer unavailable; running unsequenced: "+err.Error())
		return 0
	}
	return token
}

// claim reports whether token may write and how many queued add bags it
// takes with it. Unsequenced calls apply only their own delta.
func (s *service) claim(ctx context.Context, sess *Session, token int64, add int) (int, bool) {
	if token == 0 {
		return add, true
	}
	pending, ok, err := s.sequencer.Claim(ctx, sess.ID(), token)
	if err != nil {
		s.logg.Warn(ctx, "cart sequencer claim failed; applying own delta: "+err.Error())
		return add, true
	}
	return pending, ok
}

// lockSession serializes additive read-modify-write cycles of one session
// within this process.
func (s *service) lockSession(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &s.addLocks[h.Sum32()%uint32(len(s.addLocks))]
	mu.Lock()
	return mu.Unlock
}

func (s *service) superseded(ctx context.Context, sess *Session, token int64) bool {
	if token == 0 {
		return false
	}
	latest, err := s.sequencer.Current(ctx, sess.ID())
	if err != nil {
		s.logg.Warn(ctx, "cart sequencer read failed: "+err.Error())
		return false
	}
	return latest > token
}

func (s *service) wait(ctx context.Context) error {
	if s.debounce <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *service) view(cart *shopify.Cart) *CartView {
	view := &CartView{Lines: []LineView{}}
	if cart == nil {
		return view
	}
	view.ID = cart.ID
	view.CheckoutURL = cart.CheckoutURL
	view.SubtotalCents = cart.SubtotalCents
	view.Currency = cart.Currency
	for _, line := range cart.Lines {
		view.Lines = append(view.Lines, LineView{ID: line.ID, VariantID: line.VariantID, Quantity: line.Quantity})
	}
	view.Quantity = BagCount(cart, s.reconciler.VariantID())
	if view.Quantity > 0 {
		quote := s.pricer.PriceForQuantity(view.Quantity)
		view.Pricing = &quote
	}
	return view
}

func (s *service) success(op string, result Result) Result {
	s.record(op, outcomeOK)
	return result
}

func (s *service) stale(op string, result Result) Result {
	result.Stale = true
	s.record(op, outcomeStale)
	if s.recorder != nil {
		s.recorder.IncStale(op)
	}
	return result
}

func (s *service) unavailable(op string) Result {
	s.record(op, outcomeUnavailable)
	return Result{OK: false, Code: pkgerrors.CodeUnavailable, Message: msgUnavailable}
}

// failure converts err into a displayable result. Backend validation messages
// pass through verbatim.
func (s *service) failure(ctx context.Context, op string, err error) Result {
	code := pkgerrors.CodeOf(err)
	result := Result{OK: false, Code: code, Message: msgBackend}

	typed := pkgerrors.As(err)
	switch code {
	case pkgerrors.CodeValidation:
		if typed != nil {
			result.Message = typed.Message()
			result.Details = typed.Details()
		}
		s.logg.Warn(ctx, "cart operation rejected: "+err.Error())
		s.record(op, outcomeRejected)
		return result
	case pkgerrors.CodeUnavailable:
		result.Message = msgUnavailable
	default:
		if typed == nil {
			result.Code = pkgerrors.CodeDependency
		}
	}

	s.logg.Error(ctx, "cart operation failed", err)
	s.record(op, outcomeError)
	return result
}

func (s *service) record(op, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveCartOperation(op, outcome)
	}
}
