package registry

import (
	"context"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"vpntrack-server-go/internal/platform/config"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := NewStore(&config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, mr
}

func TestNewStoreRequiresAddr(t *testing.T) {
	if _, err := NewStore(&config.RedisConfig{}); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := NewStore(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestEnsureCounterSeeds(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureCounter(ctx); err != nil {
		t.Fatalf("EnsureCounter error: %v", err)
	}

	raw, err := mr.Get(counterKey)
	if err != nil {
		t.Fatalf("counter not written: %v", err)
	}
	seed, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("counter %q not numeric: %v", raw, err)
	}
	if seed < counterSeedMin || seed >= counterSeedMax {
		t.Errorf("seed %d outside [%d, %d)", seed, counterSeedMin, counterSeedMax)
	}
}

func TestEnsureCounterKeepsExistingValue(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := mr.Set(counterKey, "1000"); err != nil {
		t.Fatalf("preset counter: %v", err)
	}
	if err := store.EnsureCounter(ctx); err != nil {
		t.Fatalf("EnsureCounter error: %v", err)
	}
	if raw, _ := mr.Get(counterKey); raw != "1000" {
		t.Errorf("counter = %q, want untouched 1000", raw)
	}
}

func TestRegisterAppEffects(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := mr.Set(counterKey, "1000"); err != nil {
		t.Fatalf("preset counter: %v", err)
	}

	token := GenerateToken(1000, 42)
	if err := store.RegisterApp(ctx, AppKey(1000), UserKey(42), token, 42); err != nil {
		t.Fatalf("RegisterApp error: %v", err)
	}

	stored, found, err := store.Token(ctx, AppKey(1000))
	if err != nil || !found {
		t.Fatalf("Token after register: found=%v err=%v", found, err)
	}
	if stored != token {
		t.Errorf("stored token = %q, want %q", stored, token)
	}

	next, err := store.NextAppID(ctx)
	if err != nil {
		t.Fatalf("NextAppID error: %v", err)
	}
	if next != 1001 {
		t.Errorf("counter after register = %d, want 1001", next)
	}

	apps, err := store.Applications(ctx, UserKey(42))
	if err != nil {
		t.Fatalf("Applications error: %v", err)
	}
	if len(apps) != 1 || apps[0] != AppKey(1000) {
		t.Errorf("applications = %v, want [app:1000]", apps)
	}

	exists, err := store.Exists(ctx, AppKey(1000))
	if err != nil || !exists {
		t.Errorf("Exists = %v err=%v, want true", exists, err)
	}
}

func TestTokenAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	_, found, err := store.Token(context.Background(), AppKey(555))
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if found {
		t.Error("token should be absent for unknown application")
	}
}

func TestAddressLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.Address(ctx, AppKey(1000))
	if err != nil {
		t.Fatalf("Address error: %v", err)
	}
	if found {
		t.Fatal("address should be absent before any report")
	}

	if err := store.SetAddress(ctx, AppKey(1000), "203.0.113.7"); err != nil {
		t.Fatalf("SetAddress error: %v", err)
	}
	addr, found, err := store.Address(ctx, AppKey(1000))
	if err != nil || !found {
		t.Fatalf("Address after set: found=%v err=%v", found, err)
	}
	if addr != "203.0.113.7" {
		t.Errorf("address = %q, want 203.0.113.7", addr)
	}
}
