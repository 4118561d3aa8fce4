package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/bucksops/internal/domain"
	"github.com/punchamoorthee/bucksops/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bucks_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bucks_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bucks_transfers_total",
		Help: "Transfer operations by kind and outcome",
	}, []string{"kind", "outcome"})
)

type Handler struct {
	engine *service.Engine
	auth   *service.Auth
	logger *zap.Logger
}

func NewHandler(engine *service.Engine, auth *service.Auth, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, auth: auth, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sendRequest struct {
	ReceiverID int64           `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type requestRequest struct {
	PayerID int64           `json:"payer_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type resolveRequest struct {
	Decision domain.Decision `json:"decision"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/register")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Username and password required", "POST", "/register")
		return
	}

	user, account, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondDomainError(w, err, "POST", "/register")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":    user.ID,
		"username":   user.Username,
		"account_id": account.ID,
	}, "POST", "/register")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/login")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondDomainError(w, err, "POST", "/login")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	}, "POST", "/login")
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.engine.Balance(r.Context(), userID(r))
	if err != nil {
		h.respondDomainError(w, err, "GET", "/balance")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance}, "GET", "/balance")
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.engine.ListUsers(r.Context())
	if err != nil {
		h.respondDomainError(w, err, "GET", "/users")
		return
	}
	h.respondJSON(w, http.StatusOK, users, "GET", "/users")
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.engine.History(r.Context(), userID(r))
	if err != nil {
		h.respondDomainError(w, err, "GET", "/transfers")
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	h.respondJSON(w, http.StatusOK, transfers, "GET", "/transfers")
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.engine.Pending(r.Context(), userID(r))
	if err != nil {
		h.respondDomainError(w, err, "GET", "/transfers/pending")
		return
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	h.respondJSON(w, http.StatusOK, transfers, "GET", "/transfers/pending")
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Transfer not found", "GET", "/transfers/{id}")
		return
	}
	transfer, err := h.engine.TransferDetail(r.Context(), userID(r), id)
	if err != nil {
		h.respondDomainError(w, err, "GET", "/transfers/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, transfer, "GET", "/transfers/{id}")
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/send"))
	defer timer.ObserveDuration()

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/transfers/send")
		return
	}

	transfer, err := h.engine.Send(r.Context(), userID(r), req.ReceiverID, req.Amount)
	if err != nil {
		transfersTotal.WithLabelValues("send", "error").Inc()
		h.respondDomainError(w, err, "POST", "/transfers/send")
		return
	}
	transfersTotal.WithLabelValues("send", "ok").Inc()
	h.respondJSON(w, http.StatusCreated, transfer, "POST", "/transfers/send")
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/request"))
	defer timer.ObserveDuration()

	var req requestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/transfers/request")
		return
	}

	transfer, err := h.engine.Request(r.Context(), userID(r), req.PayerID, req.Amount)
	if err != nil {
		transfersTotal.WithLabelValues("request", "error").Inc()
		h.respondDomainError(w, err, "POST", "/transfers/request")
		return
	}
	transfersTotal.WithLabelValues("request", "ok").Inc()
	h.respondJSON(w, http.StatusCreated, transfer, "POST", "/transfers/request")
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/{id}/resolve"))
	defer timer.ObserveDuration()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Transfer not found", "POST", "/transfers/{id}/resolve")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/transfers/{id}/resolve")
		return
	}
	if req.Decision != domain.DecisionApprove && req.Decision != domain.DecisionReject {
		h.respondError(w, http.StatusBadRequest, "Decision must be approve or reject", "POST", "/transfers/{id}/resolve")
		return
	}

	transfer, err := h.engine.Resolve(r.Context(), userID(r), id, req.Decision)
	if err != nil {
		transfersTotal.WithLabelValues("resolve", "error").Inc()
		h.respondDomainError(w, err, "POST", "/transfers/{id}/resolve")
		return
	}
	transfersTotal.WithLabelValues("resolve", "ok").Inc()
	h.respondJSON(w, http.StatusOK, transfer, "POST", "/transfers/{id}/resolve")
}

// respondDomainError maps every taxonomy error to its own status so the
// client can render an accurate message; nothing collapses into 500
// unless it is genuinely unexpected.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrInsufficientFunds):
		h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds", method, endpoint)
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Not found", method, endpoint)
	case errors.Is(err, domain.ErrForbidden):
		h.respondError(w, http.StatusForbidden, "Forbidden", method, endpoint)
	case errors.Is(err, domain.ErrAlreadyResolved):
		h.respondError(w, http.StatusConflict, "Transfer already resolved", method, endpoint)
	case errors.Is(err, domain.ErrDuplicateOwner):
		h.respondError(w, http.StatusConflict, "Username already registered", method, endpoint)
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials", method, endpoint)
	default:
		h.logger.Error("unexpected error", zap.String("endpoint", endpoint), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
