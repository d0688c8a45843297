// Package withdraw drives a withdrawal request from submission through the
// administrator's decision.
package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wdesk/groupbroker/internal/money"
	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/store"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidTarget = errors.New("invalid payout target")
)

// Service validates requests, hands the state transitions to the store and
// fans out notifications. Any configured administrator may decide any
// request; there is no per-admin assignment.
type Service struct {
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger
	admins   map[int64]struct{}
}

func NewService(st store.Store, notifier notify.Notifier, logger *slog.Logger, adminIDs []int64) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{store: st, notifier: notifier, logger: logger, admins: admins}
}

func (s *Service) IsAdmin(id int64) bool {
	_, ok := s.admins[id]
	return ok
}

// Request parses the free-form amount, runs the soft balance check and
// files a pending record, then tells every administrator. The amount is
// fixed here and never re-derived.
func (s *Service) Request(ctx context.Context, userID int64, method, amountText, target string) (store.Withdrawal, error) {
	if method != store.MethodINRUPI && method != store.MethodUSDTBEP20 {
		return store.Withdrawal{}, store.ErrInvalidMethod
	}
	amount, err := money.Parse(amountText)
	if err != nil {
		return store.Withdrawal{}, err
	}
	if strings.TrimSpace(target) == "" {
		return store.Withdrawal{}, ErrInvalidTarget
	}

	if _, err := s.store.EnsureUser(ctx, userID); err != nil {
		return store.Withdrawal{}, err
	}

	w, err := s.store.CreateWithdrawal(ctx, store.WithdrawalInput{
		UserID: userID,
		Method: method,
		Amount: amount,
		Target: target,
	})
	if err != nil {
		return store.Withdrawal{}, err
	}

	s.logger.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"method", w.Method,
		"amount", w.Amount,
	)

	ref := strconv.FormatInt(w.ID, 10)
	text := fmt.Sprintf("💸 New withdrawal #%d\nUser: %d\nMethod: %s\nAmount: %s\nTarget: %s",
		w.ID, w.UserID, w.Method, s.format(w), w.Target)
	for adminID := range s.admins {
		err := s.notifier.Notify(ctx, adminID, text,
			notify.Action{Label: "Approve", Name: "withdraw_approve", Ref: ref},
			notify.Action{Label: "Decline", Name: "withdraw_decline", Ref: ref},
		)
		if err != nil {
			s.logger.Warn("admin notification failed", "admin_id", adminID, "withdrawal_id", w.ID, "error", err)
		}
	}
	return w, nil
}

// Approve applies the administrator's decision. The store re-reads status
// and balance at this moment: an already-decided request surfaces as
// ErrAlreadyProcessed, and one the balance no longer covers comes back
// declined instead of approved.
func (s *Service) Approve(ctx context.Context, adminID, id int64) (store.Withdrawal, error) {
	if !s.IsAdmin(adminID) {
		return store.Withdrawal{}, ErrUnauthorized
	}

	w, err := s.store.ApproveWithdrawal(ctx, id)
	if err != nil {
		return store.Withdrawal{}, err
	}

	var text string
	if w.Status == store.StatusApproved {
		text = fmt.Sprintf("✅ Your withdrawal #%d has been approved. Amount: %s (%s)", w.ID, s.format(w), w.Method)
	} else {
		text = fmt.Sprintf("❌ Your withdrawal #%d was declined due to insufficient balance at processing time. Contact support.", w.ID)
	}
	s.logger.Info("withdrawal decided",
		"withdrawal_id", w.ID,
		"admin_id", adminID,
		"status", w.Status,
	)
	if err := s.notifier.Notify(ctx, w.UserID, text); err != nil {
		s.logger.Warn("user notification failed", "user_id", w.UserID, "withdrawal_id", w.ID, "error", err)
	}
	return w, nil
}

// Decline marks the request declined whatever its current status. The
// ledger is never touched; the user is told either way.
func (s *Service) Decline(ctx context.Context, adminID, id int64) (store.Withdrawal, error) {
	if !s.IsAdmin(adminID) {
		return store.Withdrawal{}, ErrUnauthorized
	}

	w, err := s.store.DeclineWithdrawal(ctx, id)
	if err != nil {
		return store.Withdrawal{}, err
	}

	s.logger.Info("withdrawal declined", "withdrawal_id", w.ID, "admin_id", adminID)
	text := fmt.Sprintf("❌ Your withdrawal #%d has been declined. Contact support.", w.ID)
	if err := s.notifier.Notify(ctx, w.UserID, text); err != nil {
		s.logger.Warn("user notification failed", "user_id", w.UserID, "withdrawal_id", w.ID, "error", err)
	}
	return w, nil
}

func (s *Service) format(w store.Withdrawal) string {
	if w.INR() {
		return money.FormatINR(w.Amount)
	}
	return money.FormatUSD(w.Amount)
}
