package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/store"
)

type createQuoteRequest struct {
	UserID int64  `json:"user_id"`
	Link   string `json:"link"`
}

type quoteResponse struct {
	Key          string    `json:"key"`
	Link         string    `json:"link"`
	Title        string    `json:"title"`
	PeriodLabel  string    `json:"period_label"`
	MessageCount int       `json:"message_count"`
	PriceINR     int64     `json:"price_inr"`
	PriceUSD     int64     `json:"price_usd"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type transferResponse struct {
	Key       string    `json:"key"`
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	PriceINR  int64     `json:"price_inr"`
	PriceUSD  int64     `json:"price_usd"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyResponse struct {
	Settled    bool          `json:"settled"`
	Sale       *saleResponse `json:"sale,omitempty"`
	BalanceINR int64         `json:"balance_inr"`
	BalanceUSD int64         `json:"balance_usd"`
}

type saleResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	GroupLink  string    `json:"group_link"`
	GroupTitle string    `json:"group_title"`
	PriceINR   int64     `json:"price_inr"`
	PriceUSD   int64     `json:"price_usd"`
	SoldAt     time.Time `json:"sold_at"`
}

type createWithdrawalRequest struct {
	UserID int64  `json:"user_id"`
	Method string `json:"method"`
	Amount string `json:"amount"`
	Target string `json:"target"`
}

type withdrawalResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Method      string    `json:"method"`
	Amount      int64     `json:"amount"`
	Target      string    `json:"target"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

type userResponse struct {
	ID         int64     `json:"id"`
	BalanceINR int64     `json:"balance_inr"`
	BalanceUSD int64     `json:"balance_usd"`
	GroupsSold int       `json:"groups_sold"`
	JoinedAt   time.Time `json:"joined_at"`
}

type updateBalanceRequest struct {
	Op  string `json:"op"` // add|subtract|set
	INR int64  `json:"inr"`
	USD int64  `json:"usd"`
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 || req.Link == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if s.settings.Maintenance() && !s.isAdmin(req.UserID) {
		writeError(w, http.StatusServiceUnavailable, "maintenance")
		return
	}

	quote, err := s.transfers.NewQuote(r.Context(), req.UserID, req.Link)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, quoteResponse{
		Key:          quote.Key,
		Link:         quote.Link,
		Title:        quote.Title,
		PeriodLabel:  quote.PeriodLabel,
		MessageCount: quote.MessageCount,
		PriceINR:     quote.PriceINR,
		PriceUSD:     quote.PriceUSD,
		ExpiresAt:    quote.ExpiresAt,
	})
}

func (s *Server) handleConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	entry, err := s.transfers.Confirm(r.Context(), key)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		Key:       key,
		Link:      entry.Link,
		Title:     entry.Title,
		PriceINR:  entry.PriceINR,
		PriceUSD:  entry.PriceUSD,
		ExpiresAt: entry.ExpiresAt,
	})
}

func (s *Server) handleVerifyTransfer(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	result, err := s.transfers.Verify(r.Context(), key)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := verifyResponse{Settled: result.Settled}
	if result.Settled {
		resp.Sale = &saleResponse{
			ID:         result.Sale.ID,
			UserID:     result.Sale.UserID,
			GroupLink:  result.Sale.GroupLink,
			GroupTitle: result.Sale.GroupTitle,
			PriceINR:   result.Sale.PriceINR,
			PriceUSD:   result.Sale.PriceUSD,
			SoldAt:     result.Sale.SoldAt,
		}
		resp.BalanceINR = result.Balance.BalanceINR
		resp.BalanceUSD = result.Balance.BalanceUSD
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	// Cancellation succeeds from the user's perspective no matter what;
	// cleanup failures and unknown keys are not surfaced.
	s.transfers.Cancel(r.Context(), mux.Vars(r)["key"])
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	withdrawal, err := s.withdrawals.Request(r.Context(), req.UserID, req.Method, req.Amount, req.Target)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalResponse(withdrawal))
}

func (s *Server) handleApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.handleWithdrawalDecision(w, r, s.withdrawals.Approve)
}

func (s *Server) handleDeclineWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.handleWithdrawalDecision(w, r, s.withdrawals.Decline)
}

func (s *Server) handleWithdrawalDecision(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, adminID, id int64) (store.Withdrawal, error),
) {
	adminID, ok := s.adminID(r)
	if !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	withdrawal, err := decide(r.Context(), adminID, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponse(withdrawal))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	sold, err := s.store.CountSales(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:         user.ID,
		BalanceINR: user.BalanceINR,
		BalanceUSD: user.BalanceUSD,
		GroupsSold: sold,
		JoinedAt:   user.JoinedAt,
	})
}

func (s *Server) handleUserSales(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	sales, err := s.store.SalesByUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]saleResponse, 0, len(sales))
	for _, sale := range sales {
		out = append(out, saleResponse{
			ID:         sale.ID,
			UserID:     sale.UserID,
			GroupLink:  sale.GroupLink,
			GroupTitle: sale.GroupTitle,
			PriceINR:   sale.PriceINR,
			PriceUSD:   sale.PriceUSD,
			SoldAt:     sale.SoldAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	withdrawals, err := s.store.WithdrawalsByUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]withdrawalResponse, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		out = append(out, toWithdrawalResponse(withdrawal))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminID(r); !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req updateBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if _, err := s.store.EnsureUser(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	var user store.User
	switch req.Op {
	case "add":
		user, err = s.store.AdjustBalance(r.Context(), id, req.INR, req.USD)
	case "subtract":
		user, err = s.store.AdjustBalance(r.Context(), id, -req.INR, -req.USD)
	case "set":
		user, err = s.store.SetBalance(r.Context(), id, req.INR, req.USD)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:         user.ID,
		BalanceINR: user.BalanceINR,
		BalanceUSD: user.BalanceUSD,
		JoinedAt:   user.JoinedAt,
	})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	value, err := s.settings.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminID(r); !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.settings.Set(r.Context(), mux.Vars(r)["key"], req.Value); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": req.Value})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminID(r); !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.settings.SetMaintenance(r.Context(), req.Enabled); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminID(r); !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ids, err := s.store.UserIDs(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	sent := 0
	for _, id := range ids {
		if err := s.notifier.Notify(r.Context(), id, req.Text); err != nil {
			s.logger.Warn("broadcast notification failed", "user_id", id, "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   int64  `json:"user_id"`
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 || req.Question == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if _, err := s.store.EnsureUser(r.Context(), req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	ticket, err := s.store.CreateSupportTicket(r.Context(), req.UserID, req.Question)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	text := fmt.Sprintf("🆕 Support #%d\nFrom: %d\nQuestion:\n%s", ticket.ID, ticket.UserID, ticket.Question)
	ref := strconv.FormatInt(ticket.ID, 10)
	for adminID := range s.admins {
		if err := s.notifier.Notify(r.Context(), adminID, text, actionReply(ref)); err != nil {
			s.logger.Warn("admin notification failed", "admin_id", adminID, "ticket_id", ticket.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     ticket.ID,
		"status": ticket.Status,
	})
}

func (s *Server) handleReplyTicket(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminID(r); !ok {
		writeError(w, http.StatusForbidden, "unauthorized")
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	var req struct {
		Reply string `json:"reply"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Reply == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ticket, err := s.store.ReplySupportTicket(r.Context(), id, req.Reply)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.notifier.Notify(r.Context(), ticket.UserID, "💬 Support reply:\n"+ticket.AdminReply); err != nil {
		s.logger.Warn("user notification failed", "user_id", ticket.UserID, "ticket_id", ticket.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     ticket.ID,
		"status": ticket.Status,
	})
}

func actionReply(ref string) notify.Action {
	return notify.Action{Label: "Reply", Name: "support_reply", Ref: ref}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func toWithdrawalResponse(w store.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:          w.ID,
		UserID:      w.UserID,
		Method:      w.Method,
		Amount:      w.Amount,
		Target:      w.Target,
		Status:      w.Status,
		RequestedAt: w.RequestedAt,
	}
}
