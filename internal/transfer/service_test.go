package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wdesk/groupbroker/internal/groups"
	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/settings"
	"github.com/wdesk/groupbroker/internal/store"
)

const (
	testUser    = int64(42)
	testAccount = int64(999)
	testLink    = "t.me/+abcdefgh"
)

type testEnv struct {
	svc       *Service
	store     *store.Memory
	inspector *groups.MemoryInspector
	notifier  *notify.Memory
	clock     *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemory()
	cfg := settings.New(st)
	if err := cfg.Load(context.Background()); err != nil {
		t.Fatalf("settings load: %v", err)
	}

	inspector := groups.NewMemoryInspector()
	inspector.AddGroup(testLink, groups.Info{
		Title:           "Crypto Talk",
		EarliestMessage: time.Date(2023, time.June, 12, 0, 0, 0, 0, time.UTC),
		MessageCount:    200,
	})

	notifier := notify.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewService(NewRegistry(), st, inspector, notifier, cfg, logger, testAccount, 15*time.Minute)
	svc.now = clock.Now

	return &testEnv{svc: svc, store: st, inspector: inspector, notifier: notifier, clock: clock}
}

func TestQuoteConfirmVerifySettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.PriceINR != 81000 || quote.PriceUSD != 900 {
		t.Fatalf("expected the 2023 tier ₹810.00/$9.00, got %d/%d", quote.PriceINR, quote.PriceUSD)
	}

	if _, err := env.svc.Confirm(ctx, quote.Key); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Ownership not transferred yet: verify is a safe retry.
	result, err := env.svc.Verify(ctx, quote.Key)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Settled {
		t.Fatal("expected no settlement before ownership transfer")
	}

	env.inspector.SetAdministrator(testLink, true)
	result, err = env.svc.Verify(ctx, quote.Key)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Settled {
		t.Fatal("expected settlement")
	}
	if result.Sale.PriceINR != 81000 || result.Sale.PriceUSD != 900 {
		t.Fatalf("unexpected sale amounts: %+v", result.Sale)
	}

	user, err := env.store.GetUser(ctx, testUser)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.BalanceINR != 81000 || user.BalanceUSD != 900 {
		t.Fatalf("expected +₹810.00/+$9.00, got %d/%d", user.BalanceINR, user.BalanceUSD)
	}
	sales, _ := env.store.SalesByUser(ctx, testUser)
	if len(sales) != 1 {
		t.Fatalf("expected exactly one sale record, got %d", len(sales))
	}

	// The key is burnt: a repeat verify must not re-credit.
	if _, err := env.svc.Verify(ctx, quote.Key); !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending on replay, got %v", err)
	}
}

func TestVerifyCreditsAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	env.inspector.SetAdministrator(testLink, true)

	var wg sync.WaitGroup
	settled := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.svc.Verify(ctx, quote.Key)
			if err == nil && result.Settled {
				settled <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(settled)

	count := 0
	for range settled {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one settlement, got %d", count)
	}

	user, _ := env.store.GetUser(ctx, testUser)
	if user.BalanceINR != 81000 || user.BalanceUSD != 900 {
		t.Fatalf("credited more than once: %d/%d", user.BalanceINR, user.BalanceUSD)
	}
	sales, _ := env.store.SalesByUser(ctx, testUser)
	if len(sales) != 1 {
		t.Fatalf("expected one sale record, got %d", len(sales))
	}
}

func TestCreditUsesQuotedAmounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	// Operator rewrites the price table between quote and settlement.
	err = env.store.SetSetting(ctx, settings.KeyPriceList, "• 2023: ₹9999.00/$99.00")
	if err != nil {
		t.Fatalf("set setting: %v", err)
	}

	env.inspector.SetAdministrator(testLink, true)
	result, err := env.svc.Verify(ctx, quote.Key)
	if err != nil || !result.Settled {
		t.Fatalf("verify: settled=%v err=%v", result.Settled, err)
	}
	if result.Sale.PriceINR != 81000 || result.Sale.PriceUSD != 900 {
		t.Fatalf("credited recomputed price, want quoted: %+v", result.Sale)
	}
}

func TestExpiryEnforcedAtUseTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	env.inspector.SetAdministrator(testLink, true)
	env.clock.Advance(16 * time.Minute)

	// The registry still holds the entry; rejection happens at use.
	if _, ok := env.svc.registry.Load(quote.Key); !ok {
		t.Fatal("expected entry still stored")
	}
	if _, err := env.svc.Verify(ctx, quote.Key); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok := env.svc.registry.Load(quote.Key); ok {
		t.Fatal("expected entry invalidated after expiry report")
	}

	user, _ := env.store.GetUser(ctx, testUser)
	if user.BalanceINR != 0 || user.BalanceUSD != 0 {
		t.Fatal("expired transfer must not credit")
	}
}

func TestConfirmRejectsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	env.clock.Advance(time.Hour)
	if _, err := env.svc.Confirm(ctx, quote.Key); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCancelInvalidatesAndLeaves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	env.svc.Cancel(ctx, quote.Key)

	left := env.inspector.Left()
	if len(left) != 1 || left[0] != testLink {
		t.Fatalf("expected leave for %s, got %v", testLink, left)
	}
	if _, err := env.svc.Verify(ctx, quote.Key); !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending after cancel, got %v", err)
	}
}

func TestCancelSurvivesCleanupFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	env.inspector.WithError(errors.New("sidecar down"))
	env.svc.Cancel(ctx, quote.Key)

	env.inspector.WithError(nil)
	if _, err := env.svc.Verify(ctx, quote.Key); !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected cancel to invalidate despite cleanup failure, got %v", err)
	}
}

func TestVerifySurvivesInspectorOutage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, err := env.svc.NewQuote(ctx, testUser, testLink)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	env.inspector.WithError(errors.New("sidecar down"))
	if _, err := env.svc.Verify(ctx, quote.Key); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	// Outage over: the pending transfer is intact and settles normally.
	env.inspector.WithError(nil)
	env.inspector.SetAdministrator(testLink, true)
	result, err := env.svc.Verify(ctx, quote.Key)
	if err != nil || !result.Settled {
		t.Fatalf("expected settlement after outage, settled=%v err=%v", result.Settled, err)
	}
}

func TestQuoteUnresolvableGroup(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.NewQuote(context.Background(), testUser, "t.me/unknown"); !errors.Is(err, groups.ErrNotFound) {
		t.Fatalf("expected groups.ErrNotFound, got %v", err)
	}
}

func TestSettlementNotifiesUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, _ := env.svc.NewQuote(ctx, testUser, testLink)
	env.inspector.SetAdministrator(testLink, true)
	if _, err := env.svc.Verify(ctx, quote.Key); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(env.notifier.SentTo(testUser)) != 1 {
		t.Fatal("expected a settlement notification")
	}
}

func TestNotificationFailureDoesNotBlockSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	quote, _ := env.svc.NewQuote(ctx, testUser, testLink)
	env.notifier.WithError(errors.New("broker down"))
	env.inspector.SetAdministrator(testLink, true)

	result, err := env.svc.Verify(ctx, quote.Key)
	if err != nil || !result.Settled {
		t.Fatalf("settlement must not depend on notification delivery: settled=%v err=%v", result.Settled, err)
	}
	user, _ := env.store.GetUser(ctx, testUser)
	if user.BalanceINR != 81000 {
		t.Fatal("credit missing after notification failure")
	}
}
