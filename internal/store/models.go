package store

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

const (
	MethodINRUPI    = "INR_UPI"
	MethodUSDTBEP20 = "USDT_BEP20"
)

const (
	TicketOpen     = "open"
	TicketAnswered = "answered"
)

// Amounts are minor units: paise for INR, cents for USD.

type User struct {
	ID         int64
	BalanceINR int64
	BalanceUSD int64
	JoinedAt   time.Time
}

type Sale struct {
	ID         int64
	UserID     int64
	GroupLink  string
	GroupTitle string
	PriceINR   int64
	PriceUSD   int64
	SoldAt     time.Time
}

type Withdrawal struct {
	ID          int64
	UserID      int64
	Method      string
	Amount      int64
	Target      string
	Status      string
	RequestedAt time.Time
}

// INR reports whether the withdrawal draws on the INR balance; everything
// else draws on USD.
func (w Withdrawal) INR() bool {
	return w.Method == MethodINRUPI
}

type SupportTicket struct {
	ID         int64
	UserID     int64
	Question   string
	Status     string
	AdminReply string
	AskedAt    time.Time
}

type SaleInput struct {
	UserID     int64
	GroupLink  string
	GroupTitle string
	PriceINR   int64
	PriceUSD   int64
}

type WithdrawalInput struct {
	UserID int64
	Method string
	Amount int64
	Target string
}
