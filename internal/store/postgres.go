package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool. All read-modify-write
// paths lock the rows they mutate with SELECT ... FOR UPDATE and re-read
// authoritative state inside the transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const withdrawalColumns = "id, user_id, method, amount, target, status, requested_at"

func (s *Postgres) EnsureUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id)
		VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, balance_inr, balance_usd, joined_at
	`, id).Scan(&u.ID, &u.BalanceINR, &u.BalanceUSD, &u.JoinedAt)
	return u, err
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, balance_inr, balance_usd, joined_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.BalanceINR, &u.BalanceUSD, &u.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (s *Postgres) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Postgres) AdjustBalance(ctx context.Context, id, deltaINR, deltaUSD int64) (User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return User{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	u, err := lockUser(ctx, tx, id)
	if err != nil {
		return User{}, err
	}
	if u.BalanceINR+deltaINR < 0 || u.BalanceUSD+deltaUSD < 0 {
		return User{}, ErrInsufficientBalance
	}

	err = tx.QueryRow(ctx, `
		UPDATE users
		SET balance_inr = balance_inr + $1, balance_usd = balance_usd + $2
		WHERE id = $3
		RETURNING id, balance_inr, balance_usd, joined_at
	`, deltaINR, deltaUSD, id).Scan(&u.ID, &u.BalanceINR, &u.BalanceUSD, &u.JoinedAt)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Postgres) SetBalance(ctx context.Context, id, balanceINR, balanceUSD int64) (User, error) {
	if balanceINR < 0 || balanceUSD < 0 {
		return User{}, ErrInsufficientBalance
	}
	var u User
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET balance_inr = $1, balance_usd = $2
		WHERE id = $3
		RETURNING id, balance_inr, balance_usd, joined_at
	`, balanceINR, balanceUSD, id).Scan(&u.ID, &u.BalanceINR, &u.BalanceUSD, &u.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (s *Postgres) RecordSale(ctx context.Context, input SaleInput) (Sale, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Sale{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := lockUser(ctx, tx, input.UserID); err != nil {
		return Sale{}, err
	}

	var sale Sale
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (user_id, group_link, group_title, price_inr, price_usd)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, group_link, group_title, price_inr, price_usd, sold_at
	`,
		input.UserID,
		input.GroupLink,
		input.GroupTitle,
		input.PriceINR,
		input.PriceUSD,
	).Scan(&sale.ID, &sale.UserID, &sale.GroupLink, &sale.GroupTitle, &sale.PriceINR, &sale.PriceUSD, &sale.SoldAt)
	if err != nil {
		return Sale{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET balance_inr = balance_inr + $1, balance_usd = balance_usd + $2
		WHERE id = $3
	`, input.PriceINR, input.PriceUSD, input.UserID)
	if err != nil {
		return Sale{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (s *Postgres) SalesByUser(ctx context.Context, userID int64) ([]Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, group_link, group_title, price_inr, price_usd, sold_at
		FROM sales
		WHERE user_id = $1
		ORDER BY sold_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		err := rows.Scan(&sale.ID, &sale.UserID, &sale.GroupLink, &sale.GroupTitle, &sale.PriceINR, &sale.PriceUSD, &sale.SoldAt)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Postgres) CountSales(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales WHERE user_id = $1", userID).Scan(&count)
	return count, err
}

func (s *Postgres) CreateWithdrawal(ctx context.Context, input WithdrawalInput) (Withdrawal, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Withdrawal{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	u, err := lockUser(ctx, tx, input.UserID)
	if err != nil {
		return Withdrawal{}, err
	}

	balance := u.BalanceUSD
	if input.Method == MethodINRUPI {
		balance = u.BalanceINR
	}
	if balance < input.Amount {
		return Withdrawal{}, ErrInsufficientBalance
	}

	var w Withdrawal
	err = tx.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, method, amount, target, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+withdrawalColumns+`
	`,
		input.UserID,
		input.Method,
		input.Amount,
		input.Target,
		StatusPending,
	).Scan(&w.ID, &w.UserID, &w.Method, &w.Amount, &w.Target, &w.Status, &w.RequestedAt)
	if err != nil {
		return Withdrawal{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

func (s *Postgres) GetWithdrawal(ctx context.Context, id int64) (Withdrawal, error) {
	var w Withdrawal
	err := s.pool.QueryRow(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE id = $1
	`, id).Scan(&w.ID, &w.UserID, &w.Method, &w.Amount, &w.Target, &w.Status, &w.RequestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrNotFound
		}
		return Withdrawal{}, err
	}
	return w, nil
}

func (s *Postgres) WithdrawalsByUser(ctx context.Context, userID int64) ([]Withdrawal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY requested_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []Withdrawal
	for rows.Next() {
		var w Withdrawal
		err := rows.Scan(&w.ID, &w.UserID, &w.Method, &w.Amount, &w.Target, &w.Status, &w.RequestedAt)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (s *Postgres) ApproveWithdrawal(ctx context.Context, id int64) (Withdrawal, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Withdrawal{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var w Withdrawal
	err = tx.QueryRow(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&w.ID, &w.UserID, &w.Method, &w.Amount, &w.Target, &w.Status, &w.RequestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrNotFound
		}
		return Withdrawal{}, err
	}

	if w.Status != StatusPending {
		return Withdrawal{}, ErrAlreadyProcessed
	}

	u, err := lockUser(ctx, tx, w.UserID)
	if err != nil {
		return Withdrawal{}, err
	}

	balance := u.BalanceUSD
	column := "balance_usd"
	if w.INR() {
		balance = u.BalanceINR
		column = "balance_inr"
	}

	if balance < w.Amount {
		// The request was affordable when filed but no longer is: decline
		// rather than drive the balance negative.
		if err := setWithdrawalStatus(ctx, tx, id, StatusDeclined); err != nil {
			return Withdrawal{}, err
		}
		w.Status = StatusDeclined
		if err := tx.Commit(ctx); err != nil {
			return Withdrawal{}, err
		}
		return w, nil
	}

	_, err = tx.Exec(ctx, "UPDATE users SET "+column+" = "+column+" - $1 WHERE id = $2", w.Amount, w.UserID)
	if err != nil {
		return Withdrawal{}, err
	}
	if err := setWithdrawalStatus(ctx, tx, id, StatusApproved); err != nil {
		return Withdrawal{}, err
	}
	w.Status = StatusApproved

	if err := tx.Commit(ctx); err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

func (s *Postgres) DeclineWithdrawal(ctx context.Context, id int64) (Withdrawal, error) {
	var w Withdrawal
	err := s.pool.QueryRow(ctx, `
		UPDATE withdrawals
		SET status = $1
		WHERE id = $2
		RETURNING `+withdrawalColumns+`
	`, StatusDeclined, id).Scan(&w.ID, &w.UserID, &w.Method, &w.Amount, &w.Target, &w.Status, &w.RequestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrNotFound
		}
		return Withdrawal{}, err
	}
	return w, nil
}

func (s *Postgres) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Postgres) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

func (s *Postgres) CreateSupportTicket(ctx context.Context, userID int64, question string) (SupportTicket, error) {
	var t SupportTicket
	err := s.pool.QueryRow(ctx, `
		INSERT INTO support_tickets (user_id, question, status)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, question, status, admin_reply, asked_at
	`, userID, question, TicketOpen).Scan(&t.ID, &t.UserID, &t.Question, &t.Status, &t.AdminReply, &t.AskedAt)
	return t, err
}

func (s *Postgres) ReplySupportTicket(ctx context.Context, id int64, reply string) (SupportTicket, error) {
	var t SupportTicket
	err := s.pool.QueryRow(ctx, `
		UPDATE support_tickets
		SET admin_reply = $1, status = $2
		WHERE id = $3
		RETURNING id, user_id, question, status, admin_reply, asked_at
	`, reply, TicketAnswered, id).Scan(&t.ID, &t.UserID, &t.Question, &t.Status, &t.AdminReply, &t.AskedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupportTicket{}, ErrNotFound
		}
		return SupportTicket{}, err
	}
	return t, nil
}

func setWithdrawalStatus(ctx context.Context, tx pgx.Tx, id int64, status string) error {
	_, err := tx.Exec(ctx, "UPDATE withdrawals SET status = $1 WHERE id = $2", status, id)
	return err
}

func lockUser(ctx context.Context, tx pgx.Tx, id int64) (User, error) {
	var u User
	err := tx.QueryRow(ctx, `
		SELECT id, balance_inr, balance_usd, joined_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&u.ID, &u.BalanceINR, &u.BalanceUSD, &u.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}
