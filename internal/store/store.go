package store

import "context"

// Store is the durable side of the brokerage: user ledgers in two
// currencies, append-only sale and withdrawal records, operator settings and
// support tickets. Implementations must apply each multi-step mutation
// (sale credit, withdrawal approval) as one committed unit.
type Store interface {
	// EnsureUser creates the ledger record on first contact and returns it.
	EnsureUser(ctx context.Context, id int64) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UserIDs(ctx context.Context) ([]int64, error)

	// AdjustBalance applies signed deltas to both balances. A delta that
	// would drive a balance negative fails with ErrInsufficientBalance and
	// leaves the record untouched.
	AdjustBalance(ctx context.Context, id, deltaINR, deltaUSD int64) (User, error)
	SetBalance(ctx context.Context, id, balanceINR, balanceUSD int64) (User, error)

	// RecordSale appends the sale and credits the owner's balances by the
	// quoted amounts in a single transaction.
	RecordSale(ctx context.Context, input SaleInput) (Sale, error)
	SalesByUser(ctx context.Context, userID int64) ([]Sale, error)
	CountSales(ctx context.Context, userID int64) (int, error)

	// CreateWithdrawal records a pending request after a soft balance check
	// against the method's currency. No funds move until approval.
	CreateWithdrawal(ctx context.Context, input WithdrawalInput) (Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (Withdrawal, error)
	WithdrawalsByUser(ctx context.Context, userID int64) ([]Withdrawal, error)

	// ApproveWithdrawal re-reads status and balance under lock. A request
	// that is no longer pending fails with ErrAlreadyProcessed. If the
	// balance no longer covers the amount the request is declined instead;
	// otherwise debit and status change commit together. The terminal
	// record is returned either way.
	ApproveWithdrawal(ctx context.Context, id int64) (Withdrawal, error)
	// DeclineWithdrawal marks the request declined regardless of current
	// status. It never touches balances.
	DeclineWithdrawal(ctx context.Context, id int64) (Withdrawal, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	CreateSupportTicket(ctx context.Context, userID int64, question string) (SupportTicket, error)
	ReplySupportTicket(ctx context.Context, id int64, reply string) (SupportTicket, error)
}
