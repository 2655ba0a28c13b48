package cart

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/money"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

const bundleVariant = "gid://shopify/ProductVariant/bundle"

type fakeBackend struct {
	mu        sync.Mutex
	carts     map[string]*shopify.Cart
	nextCart  int
	nextLine  int
	calls     map[string]int
	errs      map[string]error
	createDur time.Duration
	onAdd     func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		carts: make(map[string]*shopify.Cart),
		calls: make(map[string]int),
		errs:  make(map[string]error),
	}
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) mutations() int {
	return f.count(shopify.OpCartLinesAdd) + f.count(shopify.OpCartLinesUpdate)
}

func (f *fakeBackend) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// seed installs a cart with the given lines.
func (f *fakeBackend) seed(id string, lines ...shopify.Line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[id] = &shopify.Cart{ID: id, CheckoutURL: "https://shop.test/checkout/" + id, Currency: "USD", Lines: lines}
}

func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeBackend) CartCreate(ctx context.Context) (*shopify.Cart, error) {
	if err := f.enter(shopify.OpCartCreate); err != nil {
		return nil, err
	}
	if f.createDur > 0 {
		time.Sleep(f.createDur)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCart++
	id := "gid://shopify/Cart/" + strconv.Itoa(f.nextCart)
	cart := &shopify.Cart{ID: id, CheckoutURL: "https://shop.test/checkout/" + id, Currency: "USD"}
	f.carts[id] = cart
	return cloneCart(cart), nil
}

func (f *fakeBackend) CartGet(ctx context.Context, cartID string) (*shopify.Cart, error) {
	if err := f.enter(shopify.OpCartGet); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, nil
	}
	return cloneCart(cart), nil
}

func (f *fakeBackend) CartLinesAdd(ctx context.Context, cartID string, lines []shopify.LineInput) (*shopify.Cart, error) {
	if err := f.enter(shopify.OpCartLinesAdd); err != nil {
		return nil, err
	}
	if f.onAdd != nil {
		f.onAdd()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "The specified cart does not exist.")
	}
	for _, input := range lines {
		f.nextLine++
		cart.Lines = append(cart.Lines, shopify.Line{
			ID:        fmt.Sprintf("gid://shopify/CartLine/%d", f.nextLine),
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
		})
	}
	recomputeSubtotal(cart)
	return cloneCart(cart), nil
}

func (f *fakeBackend) CartLinesUpdate(ctx context.Context, cartID string, updates []shopify.LineUpdate) (*shopify.Cart, error) {
	if err := f.enter(shopify.OpCartLinesUpdate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "The specified cart does not exist.")
	}
	for _, update := range updates {
		for i := range cart.Lines {
			if cart.Lines[i].ID == update.ID {
				cart.Lines[i].Quantity = update.Quantity
			}
		}
	}
	kept := cart.Lines[:0]
	for _, line := range cart.Lines {
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	cart.Lines = kept
	recomputeSubtotal(cart)
	return cloneCart(cart), nil
}

func recomputeSubtotal(cart *shopify.Cart) {
	total := money.Cents(0)
	for _, line := range cart.Lines {
		total += money.Cents(560).Times(line.Quantity)
	}
	cart.SubtotalCents = total
}

func cloneCart(cart *shopify.Cart) *shopify.Cart {
	out := *cart
	out.Lines = append([]shopify.Line(nil), cart.Lines...)
	return &out
}

type memoryJar struct {
	mu     sync.Mutex
	cartID string
	sets   int
}

func (j *memoryJar) CartID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cartID
}

func (j *memoryJar) SetCartID(cartID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cartID = cartID
	j.sets++
}

type memoryStore struct {
	mu      sync.Mutex
	data    map[string]string
	loadErr error
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) LoadCartID(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", m.loadErr
	}
	return m.data[sessionID], nil
}

func (m *memoryStore) SaveCartID(_ context.Context, sessionID, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[sessionID] = cartID
	return nil
}

// fakeKV mimics the pkg/redis client surface used by the Redis adapters.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) NextSequence(_ context.Context, sessionID string, add int, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.CartSequenceKey(sessionID)
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	f.ttls[key] = ttl
	if add != 0 {
		pendingKey := "sf:cart_pending:" + sessionID
		pending, _ := strconv.Atoi(f.data[pendingKey])
		f.data[pendingKey] = strconv.Itoa(pending + add)
	}
	return n, nil
}

func (f *fakeKV) ClaimSequence(_ context.Context, sessionID string, token int64) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest, _ := strconv.ParseInt(f.data[f.CartSequenceKey(sessionID)], 10, 64)
	if latest > token {
		return 0, false, nil
	}
	pendingKey := "sf:cart_pending:" + sessionID
	pending, _ := strconv.Atoi(f.data[pendingKey])
	delete(f.data, pendingKey)
	return pending, true, nil
}

func (f *fakeKV) CartSessionKey(sessionID string) string {
	return "sf:cart_session:" + sessionID
}

func (f *fakeKV) CartSequenceKey(sessionID string) string {
	return "sf:cart_seq:" + sessionID
}

type recordingRecorder struct {
	mu         sync.Mutex
	operations map[string]int
	stale      int
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{operations: make(map[string]int)}
}

func (r *recordingRecorder) ObserveCartOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[operation+":"+outcome]++
}

func (r *recordingRecorder) IncStale(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *recordingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operations[key]
}
