package cart

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionCartIDPrefersCookie(t *testing.T) {
	store := newMemoryStore()
	store.data["sess-1"] = "from-store"
	jar := &memoryJar{cartID: "from-cookie"}

	got, err := NewSession("sess-1", store, jar).CartID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-cookie" {
		t.Fatalf("expected cookie cart id, got %q", got)
	}
}

func TestSessionCartIDFallsBackToStoreAndMirrorsCookie(t *testing.T) {
	store := newMemoryStore()
	store.data["sess-1"] = "from-store"
	jar := &memoryJar{}

	got, err := NewSession("sess-1", store, jar).CartID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-store" {
		t.Fatalf("expected store cart id, got %q", got)
	}
	if jar.cartID != "from-store" {
		t.Fatalf("expected cookie to be refreshed, got %q", jar.cartID)
	}
}

func TestSessionCartIDEmptyWithoutState(t *testing.T) {
	got, err := NewSession("sess-1", nil, nil).CartID(context.Background())
	if err != nil || got != "" {
		t.Fatalf("expected empty cart id, got %q err=%v", got, err)
	}
}

func TestSessionCartIDStoreError(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("redis down")

	if _, err := NewSession("sess-1", store, &memoryJar{}).CartID(context.Background()); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestSessionPersistWritesBoth(t *testing.T) {
	store := newMemoryStore()
	jar := &memoryJar{}
	sess := NewSession("sess-1", store, jar)

	if err := sess.Persist(context.Background(), "cart-9"); err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	if store.data["sess-1"] != "cart-9" || jar.cartID != "cart-9" {
		t.Fatalf("expected dual write, store=%q cookie=%q", store.data["sess-1"], jar.cartID)
	}
	if got, _ := sess.CartID(context.Background()); got != "cart-9" {
		t.Fatalf("expected cached cart id, got %q", got)
	}

	store.saveErr = errors.New("redis down")
	if err := sess.Persist(context.Background(), "cart-10"); err == nil {
		t.Fatal("expected store failure to be reported")
	}
	if jar.cartID != "cart-10" {
		t.Fatalf("cookie must still be written, got %q", jar.cartID)
	}
}

func TestMemorySequencer(t *testing.T) {
	seq := NewMemorySequencer()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "a", 0)
		if err != nil || got != want {
			t.Fatalf("expected token %d, got %d err=%v", want, got, err)
		}
	}
	if got, _ := seq.Current(ctx, "a"); got != 3 {
		t.Fatalf("expected current 3, got %d", got)
	}
	if got, _ := seq.Current(ctx, "b"); got != 0 {
		t.Fatalf("sessions must not share tokens, got %d", got)
	}

	token, _ := seq.Next(ctx, "b", 2)
	if _, err := seq.Next(ctx, "b", 1); err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if _, ok, _ := seq.Claim(ctx, "b", token); ok {
		t.Fatal("an older token must not claim")
	}
	if pending, ok, _ := seq.Claim(ctx, "b", token+1); !ok || pending != 3 {
		t.Fatalf("expected 3 queued bags, got %d ok=%v", pending, ok)
	}
	if pending, _, _ := seq.Claim(ctx, "b", token+1); pending != 0 {
		t.Fatalf("queue must be empty after a claim, got %d", pending)
	}
}

func TestRedisSequencer(t *testing.T) {
	kv := newFakeKV()
	seq := NewRedisSequencer(kv, time.Hour)
	ctx := context.Background()

	if got, err := seq.Current(ctx, "a"); err != nil || got != 0 {
		t.Fatalf("expected 0 before first token, got %d err=%v", got, err)
	}
	if _, err := seq.Next(ctx, "a", 1); err != nil {
		t.Fatalf("next failed: %v", err)
	}
	got, err := seq.Next(ctx, "a", 2)
	if err != nil || got != 2 {
		t.Fatalf("expected token 2, got %d err=%v", got, err)
	}
	if current, _ := seq.Current(ctx, "a"); current != 2 {
		t.Fatalf("expected current 2, got %d", current)
	}
	if ttl := kv.ttls["sf:cart_seq:a"]; ttl != time.Hour {
		t.Fatalf("expected ttl on the sequence key, got %v", ttl)
	}

	if _, ok, _ := seq.Claim(ctx, "a", 1); ok {
		t.Fatal("a superseded token must not claim the queue")
	}
	pending, ok, err := seq.Claim(ctx, "a", 2)
	if err != nil || !ok || pending != 3 {
		t.Fatalf("expected newest token to claim 3 queued bags, got %d ok=%v err=%v", pending, ok, err)
	}
}

func TestRedisSessionStore(t *testing.T) {
	kv := newFakeKV()
	store := NewRedisSessionStore(kv, 240*time.Hour)
	ctx := context.Background()

	if got, err := store.LoadCartID(ctx, "sess-1"); err != nil || got != "" {
		t.Fatalf("expected miss to be empty, got %q err=%v", got, err)
	}
	if err := store.SaveCartID(ctx, "sess-1", "cart-1"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got, _ := store.LoadCartID(ctx, "sess-1"); got != "cart-1" {
		t.Fatalf("expected cart-1, got %q", got)
	}
	if ttl := kv.ttls["sf:cart_session:sess-1"]; ttl != 240*time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}
