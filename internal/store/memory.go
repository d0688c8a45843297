package store

import (
	"context"
	"sync"
	"time"
)

// Memory implements Store with mutex-guarded maps. It backs unit tests and
// local runs without a database; every mutation happens under one lock, so
// the same committed-unit guarantees hold as for the Postgres store.
type Memory struct {
	mu sync.Mutex

	users       map[int64]*User
	sales       []Sale
	withdrawals map[int64]*Withdrawal
	order       []int64
	settings    map[string]string
	tickets     map[int64]*SupportTicket

	nextSaleID       int64
	nextWithdrawalID int64
	nextTicketID     int64
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]*User),
		withdrawals: make(map[int64]*Withdrawal),
		settings:    make(map[string]string),
		tickets:     make(map[int64]*SupportTicket),
	}
}

func (s *Memory) EnsureUser(_ context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureLocked(id), nil
}

func (s *Memory) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

func (s *Memory) UserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Memory) AdjustBalance(_ context.Context, id, deltaINR, deltaUSD int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if u.BalanceINR+deltaINR < 0 || u.BalanceUSD+deltaUSD < 0 {
		return User{}, ErrInsufficientBalance
	}
	u.BalanceINR += deltaINR
	u.BalanceUSD += deltaUSD
	return *u, nil
}

func (s *Memory) SetBalance(_ context.Context, id, balanceINR, balanceUSD int64) (User, error) {
	if balanceINR < 0 || balanceUSD < 0 {
		return User{}, ErrInsufficientBalance
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.BalanceINR = balanceINR
	u.BalanceUSD = balanceUSD
	return *u, nil
}

func (s *Memory) RecordSale(_ context.Context, input SaleInput) (Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[input.UserID]
	if !ok {
		return Sale{}, ErrUserNotFound
	}

	s.nextSaleID++
	sale := Sale{
		ID:         s.nextSaleID,
		UserID:     input.UserID,
		GroupLink:  input.GroupLink,
		GroupTitle: input.GroupTitle,
		PriceINR:   input.PriceINR,
		PriceUSD:   input.PriceUSD,
		SoldAt:     time.Now().UTC(),
	}
	s.sales = append(s.sales, sale)
	u.BalanceINR += input.PriceINR
	u.BalanceUSD += input.PriceUSD
	return sale, nil
}

func (s *Memory) SalesByUser(_ context.Context, userID int64) ([]Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sales []Sale
	for i := len(s.sales) - 1; i >= 0; i-- {
		if s.sales[i].UserID == userID {
			sales = append(sales, s.sales[i])
		}
	}
	return sales, nil
}

func (s *Memory) CountSales(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sale := range s.sales {
		if sale.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Memory) CreateWithdrawal(_ context.Context, input WithdrawalInput) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[input.UserID]
	if !ok {
		return Withdrawal{}, ErrUserNotFound
	}

	balance := u.BalanceUSD
	if input.Method == MethodINRUPI {
		balance = u.BalanceINR
	}
	if balance < input.Amount {
		return Withdrawal{}, ErrInsufficientBalance
	}

	s.nextWithdrawalID++
	w := &Withdrawal{
		ID:          s.nextWithdrawalID,
		UserID:      input.UserID,
		Method:      input.Method,
		Amount:      input.Amount,
		Target:      input.Target,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	s.withdrawals[w.ID] = w
	s.order = append(s.order, w.ID)
	return *w, nil
}

func (s *Memory) GetWithdrawal(_ context.Context, id int64) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	return *w, nil
}

func (s *Memory) WithdrawalsByUser(_ context.Context, userID int64) ([]Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var withdrawals []Withdrawal
	for i := len(s.order) - 1; i >= 0; i-- {
		w := s.withdrawals[s.order[i]]
		if w.UserID == userID {
			withdrawals = append(withdrawals, *w)
		}
	}
	return withdrawals, nil
}

func (s *Memory) ApproveWithdrawal(_ context.Context, id int64) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	if w.Status != StatusPending {
		return Withdrawal{}, ErrAlreadyProcessed
	}
	u, ok := s.users[w.UserID]
	if !ok {
		return Withdrawal{}, ErrUserNotFound
	}

	balance := &u.BalanceUSD
	if w.INR() {
		balance = &u.BalanceINR
	}
	if *balance < w.Amount {
		w.Status = StatusDeclined
		return *w, nil
	}
	*balance -= w.Amount
	w.Status = StatusApproved
	return *w, nil
}

func (s *Memory) DeclineWithdrawal(_ context.Context, id int64) (Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	w.Status = StatusDeclined
	return *w, nil
}

func (s *Memory) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *Memory) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Memory) CreateSupportTicket(_ context.Context, userID int64, question string) (SupportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return SupportTicket{}, ErrUserNotFound
	}
	s.nextTicketID++
	t := &SupportTicket{
		ID:       s.nextTicketID,
		UserID:   userID,
		Question: question,
		Status:   TicketOpen,
		AskedAt:  time.Now().UTC(),
	}
	s.tickets[t.ID] = t
	return *t, nil
}

func (s *Memory) ReplySupportTicket(_ context.Context, id int64, reply string) (SupportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return SupportTicket{}, ErrNotFound
	}
	t.AdminReply = reply
	t.Status = TicketAnswered
	return *t, nil
}

func (s *Memory) ensureLocked(id int64) *User {
	u, ok := s.users[id]
	if !ok {
		u = &User{ID: id, JoinedAt: time.Now().UTC()}
		s.users[id] = u
	}
	return u
}
