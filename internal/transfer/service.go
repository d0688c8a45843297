package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wdesk/groupbroker/internal/groups"
	"github.com/wdesk/groupbroker/internal/money"
	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/pricing"
	"github.com/wdesk/groupbroker/internal/settings"
	"github.com/wdesk/groupbroker/internal/store"
)

var (
	ErrNoPending = errors.New("no pending transfer found")
	ErrExpired   = errors.New("transfer window expired")
	// ErrUnavailable marks an inspection failure the user may retry; the
	// pending transfer is left untouched.
	ErrUnavailable = errors.New("group inspection unavailable")
)

// Service is the transfer state machine. State lives in the registry entry:
// its presence means quoted, Confirm moves the user to the hand-over step
// without mutating it, and Verify either retries, expires, or settles.
type Service struct {
	registry  *Registry
	store     store.Store
	inspector groups.Inspector
	notifier  notify.Notifier
	settings  *settings.Service
	logger    *slog.Logger

	accountID int64
	ttl       time.Duration
	now       func() time.Time
}

func NewService(
	registry *Registry,
	st store.Store,
	inspector groups.Inspector,
	notifier notify.Notifier,
	cfg *settings.Service,
	logger *slog.Logger,
	accountID int64,
	ttl time.Duration,
) *Service {
	return &Service{
		registry:  registry,
		store:     st,
		inspector: inspector,
		notifier:  notifier,
		settings:  cfg,
		logger:    logger,
		accountID: accountID,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Quote describes an issued quote: the key the rest of the flow runs under
// plus everything the user needs to decide.
type Quote struct {
	Key          string
	Link         string
	Title        string
	PeriodLabel  string
	MessageCount int
	PriceINR     int64
	PriceUSD     int64
	ExpiresAt    time.Time
}

// Settlement is the outcome of a successful Verify.
type Settlement struct {
	Settled bool
	Entry   Entry
	Sale    store.Sale
	Balance store.User
}

// NewQuote resolves the group through the automated account, prices it
// against the current table and files a pending transfer under a fresh key.
func (s *Service) NewQuote(ctx context.Context, userID int64, link string) (Quote, error) {
	if _, err := s.store.EnsureUser(ctx, userID); err != nil {
		return Quote{}, err
	}

	info, err := s.inspector.Resolve(ctx, link)
	if err != nil {
		return Quote{}, inspectionError(err)
	}

	label := pricing.PeriodLabel(info.EarliestMessage)
	tier := pricing.Match(s.settings.Tiers(ctx), label)

	issuedAt := s.now()
	key := NewKey(userID, link, issuedAt)
	expiresAt := issuedAt.Add(s.ttl)
	s.registry.Create(key, Entry{
		UserID:    userID,
		Link:      link,
		Title:     info.Title,
		PriceINR:  tier.PriceINR,
		PriceUSD:  tier.PriceUSD,
		ExpiresAt: expiresAt,
	})

	s.logger.Info("quote issued",
		"user_id", userID,
		"key", key,
		"tier", tier.Label,
		"price_inr", tier.PriceINR,
		"price_usd", tier.PriceUSD,
	)

	return Quote{
		Key:          key,
		Link:         link,
		Title:        info.Title,
		PeriodLabel:  label,
		MessageCount: info.MessageCount,
		PriceINR:     tier.PriceINR,
		PriceUSD:     tier.PriceUSD,
		ExpiresAt:    expiresAt,
	}, nil
}

// Confirm checks the quote is still live and returns it so the caller can
// show the hand-over instructions. The entry itself is not touched.
func (s *Service) Confirm(ctx context.Context, key string) (Entry, error) {
	entry, ok := s.registry.Load(key)
	if !ok {
		return Entry{}, ErrNoPending
	}
	if s.expired(entry) {
		s.registry.Invalidate(key)
		return Entry{}, ErrExpired
	}
	return entry, nil
}

// Cancel invalidates the quote unconditionally and asks the automated
// account to leave the group. Cleanup failures are logged and ignored; the
// cancellation itself always succeeds.
func (s *Service) Cancel(ctx context.Context, key string) {
	entry, ok := s.registry.Load(key)
	if !ok {
		return
	}
	if err := s.inspector.Leave(ctx, entry.Link); err != nil {
		s.logger.Warn("leave after cancel failed", "key", key, "error", err)
	}
	s.registry.Invalidate(key)
}

// Verify re-checks expiry, then inspects the group's administrator list for
// the automated account. Not yet an admin is not an error: the caller may
// retry until the window closes. On success the entry is consumed and the
// sale recorded with the quoted amounts; a repeat Verify on the same key
// sees no pending transfer.
func (s *Service) Verify(ctx context.Context, key string) (Settlement, error) {
	entry, ok := s.registry.Load(key)
	if !ok {
		return Settlement{}, ErrNoPending
	}
	if s.expired(entry) {
		s.registry.Invalidate(key)
		return Settlement{}, ErrExpired
	}

	isAdmin, err := s.inspector.IsAdministrator(ctx, entry.Link, s.accountID)
	if err != nil {
		// The pending transfer stays live for a retry.
		return Settlement{}, inspectionError(err)
	}
	if !isAdmin {
		return Settlement{Entry: entry}, nil
	}

	entry, ok = s.registry.Consume(key)
	if !ok {
		return Settlement{}, ErrNoPending
	}

	sale, err := s.store.RecordSale(ctx, store.SaleInput{
		UserID:     entry.UserID,
		GroupLink:  entry.Link,
		GroupTitle: entry.Title,
		PriceINR:   entry.PriceINR,
		PriceUSD:   entry.PriceUSD,
	})
	if err != nil {
		s.logger.Error("settlement failed after consume", "key", key, "user_id", entry.UserID, "error", err)
		return Settlement{}, err
	}

	balance, err := s.store.GetUser(ctx, entry.UserID)
	if err != nil {
		return Settlement{}, err
	}

	s.logger.Info("transfer settled",
		"key", key,
		"user_id", entry.UserID,
		"sale_id", sale.ID,
		"price_inr", sale.PriceINR,
		"price_usd", sale.PriceUSD,
	)

	text := fmt.Sprintf("✅ Group Sold!\n\nGroup: %s\nPrice: %s/%s\nAccount balance: %s/%s",
		sale.GroupTitle,
		money.FormatINR(sale.PriceINR), money.FormatUSD(sale.PriceUSD),
		money.FormatINR(balance.BalanceINR), money.FormatUSD(balance.BalanceUSD),
	)
	if err := s.notifier.Notify(ctx, entry.UserID, text); err != nil {
		s.logger.Warn("sale notification failed", "user_id", entry.UserID, "error", err)
	}

	return Settlement{Settled: true, Entry: entry, Sale: sale, Balance: balance}, nil
}

func (s *Service) expired(entry Entry) bool {
	return s.now().After(entry.ExpiresAt)
}

func inspectionError(err error) error {
	if errors.Is(err, groups.ErrNotFound) || errors.Is(err, groups.ErrAccessDenied) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
