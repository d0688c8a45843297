package withdraw_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/wdesk/groupbroker/internal/money"
	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/store"
	"github.com/wdesk/groupbroker/internal/withdraw"
)

const (
	userID  = int64(7)
	adminID = int64(100)
)

func newService(t *testing.T) (*withdraw.Service, *store.Memory, *notify.Memory) {
	t.Helper()
	st := store.NewMemory()
	notifier := notify.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := withdraw.NewService(st, notifier, logger, []int64{adminID, adminID + 1})
	return svc, st, notifier
}

func seedBalance(t *testing.T, st *store.Memory, inr, usd int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := st.EnsureUser(ctx, userID); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if _, err := st.SetBalance(ctx, userID, inr, usd); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func TestRequestParsesFreeFormAmount(t *testing.T) {
	svc, st, notifier := newService(t)
	seedBalance(t, st, 100000, 0)

	w, err := svc.Request(context.Background(), userID, store.MethodINRUPI, "₹500 please", "name@upi")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if w.Amount != 50000 || w.Status != store.StatusPending {
		t.Fatalf("unexpected withdrawal: %+v", w)
	}

	// Both admins get the approve/decline prompt.
	all := notifier.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 admin notifications, got %d", len(all))
	}
	if len(all[0].Actions) != 2 {
		t.Fatalf("expected approve/decline actions, got %+v", all[0].Actions)
	}
}

func TestRequestRejectsBadInput(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 100000, 0)
	ctx := context.Background()

	if _, err := svc.Request(ctx, userID, store.MethodINRUPI, "lots", "name@upi"); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Request(ctx, userID, "PAYPAL", "100", "x"); !errors.Is(err, store.ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
	if _, err := svc.Request(ctx, userID, store.MethodINRUPI, "2000", "name@upi"); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := svc.Request(ctx, userID, store.MethodINRUPI, "100", "  "); !errors.Is(err, withdraw.ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}

	// No funds moved and nothing was recorded.
	u, _ := st.GetUser(ctx, userID)
	if u.BalanceINR != 100000 {
		t.Fatalf("balance changed: %d", u.BalanceINR)
	}
	ws, _ := st.WithdrawalsByUser(ctx, userID)
	if len(ws) != 0 {
		t.Fatalf("expected no withdrawals, got %d", len(ws))
	}
}

func TestRequestChecksMatchingCurrency(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 0, 5000) // $50 but no rupees

	ctx := context.Background()
	if _, err := svc.Request(ctx, userID, store.MethodINRUPI, "10", "name@upi"); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected INR check to fail, got %v", err)
	}
	if _, err := svc.Request(ctx, userID, store.MethodUSDTBEP20, "10", "0xabc"); err != nil {
		t.Fatalf("USD withdrawal should pass: %v", err)
	}
}

func TestApproveDebitsOnce(t *testing.T) {
	svc, st, notifier := newService(t)
	seedBalance(t, st, 100000, 0)
	ctx := context.Background()

	w, err := svc.Request(ctx, userID, store.MethodINRUPI, "300", "name@upi")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	decided, err := svc.Approve(ctx, adminID, w.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != store.StatusApproved {
		t.Fatalf("expected approved, got %s", decided.Status)
	}

	u, _ := st.GetUser(ctx, userID)
	if u.BalanceINR != 70000 {
		t.Fatalf("expected balance 70000, got %d", u.BalanceINR)
	}
	if len(notifier.SentTo(userID)) != 1 {
		t.Fatal("expected user notification")
	}

	// Double-click or a second admin racing: no second debit.
	if _, err := svc.Approve(ctx, adminID, w.ID); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	u, _ = st.GetUser(ctx, userID)
	if u.BalanceINR != 70000 {
		t.Fatalf("double debit: %d", u.BalanceINR)
	}
}

func TestApproveAutoDeclinesWhenBalanceDropped(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 50000, 0) // ₹500
	ctx := context.Background()

	// The ₹500 request is affordable when filed.
	first, err := svc.Request(ctx, userID, store.MethodINRUPI, "500", "name@upi")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// While the admin stalls, a second withdrawal drains the balance to ₹100.
	second, err := svc.Request(ctx, userID, store.MethodINRUPI, "400", "name@upi")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Approve(ctx, adminID, second.ID); err != nil {
		t.Fatalf("approve second: %v", err)
	}

	decided, err := svc.Approve(ctx, adminID, first.ID)
	if err != nil {
		t.Fatalf("approve first: %v", err)
	}
	if decided.Status != store.StatusDeclined {
		t.Fatalf("expected auto-decline, got %s", decided.Status)
	}

	u, _ := st.GetUser(ctx, userID)
	if u.BalanceINR != 10000 {
		t.Fatalf("expected balance to remain ₹100.00, got %d", u.BalanceINR)
	}
}

func TestDeclineNeverTouchesBalance(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 50000, 0)
	ctx := context.Background()

	w, err := svc.Request(ctx, userID, store.MethodINRUPI, "200", "name@upi")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	decided, err := svc.Decline(ctx, adminID, w.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if decided.Status != store.StatusDeclined {
		t.Fatalf("expected declined, got %s", decided.Status)
	}
	u, _ := st.GetUser(ctx, userID)
	if u.BalanceINR != 50000 {
		t.Fatalf("decline moved funds: %d", u.BalanceINR)
	}

	// Declining again is a ledger no-op.
	if _, err := svc.Decline(ctx, adminID, w.ID); err != nil {
		t.Fatalf("repeat decline: %v", err)
	}
}

func TestApproveAfterDecline(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 50000, 0)
	ctx := context.Background()

	w, _ := svc.Request(ctx, userID, store.MethodINRUPI, "200", "name@upi")
	if _, err := svc.Decline(ctx, adminID, w.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := svc.Approve(ctx, adminID, w.ID); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	u, _ := st.GetUser(ctx, userID)
	if u.BalanceINR != 50000 {
		t.Fatalf("declined request was debited: %d", u.BalanceINR)
	}
}

func TestConcurrentDecisionsDebitAtMostOnce(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		seedBalance(t, st, 50000, 0)
		w, err := svc.Request(ctx, userID, store.MethodINRUPI, "200", "name@upi")
		if err != nil {
			t.Fatalf("request: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Approve(ctx, adminID, w.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Decline(ctx, adminID+1, w.ID)
		}()
		wg.Wait()

		final, err := st.GetWithdrawal(ctx, w.ID)
		if err != nil {
			t.Fatalf("get withdrawal: %v", err)
		}
		if final.Status == store.StatusPending {
			t.Fatal("expected a terminal status")
		}
		u, _ := st.GetUser(ctx, userID)
		if u.BalanceINR != 50000 && u.BalanceINR != 30000 {
			t.Fatalf("more than one debit: %d", u.BalanceINR)
		}
	}
}

func TestDecisionsRequireAdmin(t *testing.T) {
	svc, st, _ := newService(t)
	seedBalance(t, st, 50000, 0)
	ctx := context.Background()

	w, _ := svc.Request(ctx, userID, store.MethodINRUPI, "200", "name@upi")
	if _, err := svc.Approve(ctx, userID, w.ID); !errors.Is(err, withdraw.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Decline(ctx, userID, w.ID); !errors.Is(err, withdraw.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, _ := st.GetWithdrawal(ctx, w.ID)
	if got.Status != store.StatusPending {
		t.Fatalf("unauthorized call changed status: %s", got.Status)
	}
}

func TestDecideUnknownWithdrawal(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.Approve(context.Background(), adminID, 12345); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	svc, st, notifier := newService(t)
	seedBalance(t, st, 50000, 0)
	notifier.WithError(errors.New("broker down"))

	w, err := svc.Request(context.Background(), userID, store.MethodINRUPI, "200", "name@upi")
	if err != nil {
		t.Fatalf("request must survive notification failure: %v", err)
	}
	if w.Status != store.StatusPending {
		t.Fatalf("unexpected status: %s", w.Status)
	}
}
