package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/punchamoorthee/bucksops/internal/service"
)

// NewRouter wires the full HTTP surface: open register/login, a
// token-protected /api/v1 subrouter, plus /health and /metrics.
func NewRouter(h *Handler, auth *service.Auth, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer(logger))
	r.Use(AccessLog(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/register", h.Register).Methods("POST")
	apiV1.HandleFunc("/login", h.Login).Methods("POST")

	protected := apiV1.NewRoute().Subrouter()
	protected.Use(Authenticate(auth))
	protected.HandleFunc("/balance", h.GetBalance).Methods("GET")
	protected.HandleFunc("/users", h.ListUsers).Methods("GET")
	protected.HandleFunc("/transfers", h.ListHistory).Methods("GET")
	protected.HandleFunc("/transfers/pending", h.ListPending).Methods("GET")
	protected.HandleFunc("/transfers/send", h.Send).Methods("POST")
	protected.HandleFunc("/transfers/request", h.Request).Methods("POST")
	protected.HandleFunc("/transfers/{id:[0-9]+}", h.GetTransfer).Methods("GET")
	protected.HandleFunc("/transfers/{id:[0-9]+}/resolve", h.Resolve).Methods("POST")

	return r
}
