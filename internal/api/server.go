package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/settings"
	"github.com/wdesk/groupbroker/internal/store"
	"github.com/wdesk/groupbroker/internal/transfer"
	"github.com/wdesk/groupbroker/internal/withdraw"
)

type Server struct {
	transfers   *transfer.Service
	withdrawals *withdraw.Service
	store       store.Store
	settings    *settings.Service
	notifier    notify.Notifier
	logger      *slog.Logger
	authToken   string
	admins      map[int64]struct{}
}

func NewServer(
	transfers *transfer.Service,
	withdrawals *withdraw.Service,
	st store.Store,
	cfg *settings.Service,
	notifier notify.Notifier,
	logger *slog.Logger,
	authToken string,
	adminIDs []int64,
) *Server {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Server{
		transfers:   transfers,
		withdrawals: withdrawals,
		store:       st,
		settings:    cfg,
		notifier:    notifier,
		logger:      logger,
		authToken:   authToken,
		admins:      admins,
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logMiddleware, s.authMiddleware)

	r.HandleFunc("/v1/quotes", s.handleCreateQuote).Methods(http.MethodPost)
	r.HandleFunc("/v1/transfers/{key}/confirm", s.handleConfirmTransfer).Methods(http.MethodPost)
	r.HandleFunc("/v1/transfers/{key}/verify", s.handleVerifyTransfer).Methods(http.MethodPost)
	r.HandleFunc("/v1/transfers/{key}/cancel", s.handleCancelTransfer).Methods(http.MethodPost)

	r.HandleFunc("/v1/withdrawals", s.handleCreateWithdrawal).Methods(http.MethodPost)
	r.HandleFunc("/v1/withdrawals/{id}/approve", s.handleApproveWithdrawal).Methods(http.MethodPost)
	r.HandleFunc("/v1/withdrawals/{id}/decline", s.handleDeclineWithdrawal).Methods(http.MethodPost)

	r.HandleFunc("/v1/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/sales", s.handleUserSales).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/withdrawals", s.handleUserWithdrawals).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/balance", s.handleUpdateBalance).Methods(http.MethodPost)

	r.HandleFunc("/v1/settings/{key}", s.handleGetSetting).Methods(http.MethodGet)
	r.HandleFunc("/v1/settings/{key}", s.handlePutSetting).Methods(http.MethodPut)
	r.HandleFunc("/v1/maintenance", s.handleMaintenance).Methods(http.MethodPost)
	r.HandleFunc("/v1/broadcast", s.handleBroadcast).Methods(http.MethodPost)

	r.HandleFunc("/v1/support", s.handleCreateTicket).Methods(http.MethodPost)
	r.HandleFunc("/v1/support/{id}/reply", s.handleReplyTicket).Methods(http.MethodPost)

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if !secureCompare(token, s.authToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminID reads the acting administrator from the X-Admin-ID header. A
// missing, malformed or unknown identity is Unauthorized; services re-check
// on their own before mutating anything.
func (s *Server) adminID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Admin-ID"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	_, ok := s.admins[id]
	return id, ok
}

func (s *Server) isAdmin(id int64) bool {
	_, ok := s.admins[id]
	return ok
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
