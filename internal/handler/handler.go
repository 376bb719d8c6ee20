package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/altbank/backoffice/internal/integrations/ecb"
	"github.com/altbank/backoffice/internal/lifecycle"
	"github.com/altbank/backoffice/internal/middleware"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/repository"
	"github.com/altbank/backoffice/internal/service"
)

// RateSource supplies the informational exchange-rate feed.
type RateSource interface {
	GetReferenceRates() ([]ecb.Rate, error)
}

// Handler wires HTTP requests to the service layer
type Handler struct {
	svc   *service.Service
	rates RateSource
	log   *logrus.Logger
}

// NewHandler initializes a new handler. rates may be nil.
func NewHandler(svc *service.Service, rates RateSource, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, rates: rates, log: log}
}

// RegisterAuthenticated mounts the routes that require a valid token
func (h *Handler) RegisterAuthenticated(r *mux.Router) {
	r.HandleFunc("/accounts", h.ApplyForAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/decision", h.DecideAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/deposits", h.Deposit).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/transfers", h.Transfer).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/transactions", h.ListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/cards", h.ApplyForCard).Methods(http.MethodPost)
	r.HandleFunc("/cards", h.ListCards).Methods(http.MethodGet)
	r.HandleFunc("/cards/{id}", h.GetCard).Methods(http.MethodGet)
	r.HandleFunc("/cards/{id}/decision", h.DecideCard).Methods(http.MethodPost)
	r.HandleFunc("/rates", h.GetRates).Methods(http.MethodGet)
}

// RegisterPublic mounts the routes available without a token
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps business failures to HTTP statuses. Anything
// unmatched is an internal error and is logged rather than leaked.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidIBAN),
		errors.Is(err, service.ErrInvalidIdempotencyKey),
		errors.Is(err, service.ErrInvalidCurrency),
		errors.Is(err, lifecycle.ErrReasonRequired),
		errors.Is(err, lifecycle.ErrUnknownDecision):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, repository.ErrDuplicateKey),
		errors.Is(err, lifecycle.ErrAlreadyDecided):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrAccountNotActive),
		errors.Is(err, service.ErrCardRequired),
		errors.Is(err, service.ErrSelfTransfer),
		errors.Is(err, service.ErrPendingApplication),
		errors.Is(err, service.ErrPendingCard),
		errors.Is(err, service.ErrActiveCardExists):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		h.respond(w, status, errorResponse{Error: "internal server error"})
		return
	}
	h.respond(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// requester extracts the authenticated identity set by the middleware
func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (uuid.UUID, models.Role, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		h.respond(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return uuid.Nil, "", false
	}
	role, ok := middleware.UserRole(r.Context())
	if !ok {
		h.respond(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return uuid.Nil, "", false
	}
	return id, role, true
}

func (h *Handler) requireBanker(w http.ResponseWriter, role models.Role) bool {
	if role != models.RoleBanker {
		h.respond(w, http.StatusForbidden, errorResponse{Error: service.ErrForbidden.Error()})
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// GetRates serves the ECB euro reference rates. Informational only.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		h.respond(w, http.StatusServiceUnavailable, errorResponse{Error: "rate feed not configured"})
		return
	}
	rates, err := h.rates.GetReferenceRates()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"base": "EUR", "rates": rates})
}
