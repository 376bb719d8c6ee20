package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/lifecycle"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

type applyAccountRequest struct {
	Currency string `json:"currency"`
}

// ApplyForAccount files a new account application for the requester
func (h *Handler) ApplyForAccount(w http.ResponseWriter, r *http.Request) {
	requesterID, _, ok := h.requester(w, r)
	if !ok {
		return
	}
	var req applyAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.ApplyForAccount(r.Context(), requesterID, req.Currency)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, account)
}

// ListAccounts lists accounts visible to the requester. Bankers may
// filter by status and client_id.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok {
		return
	}

	status := models.ApplicationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
		return
	}
	var clientID *uuid.UUID
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid client_id filter"})
			return
		}
		clientID = &id
	}

	accounts, err := h.svc.ListAccounts(r.Context(), requesterID, role, status, clientID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, accounts)
}

// GetAccount retrieves a single account visible to the requester
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	account, err := h.svc.GetAccount(r.Context(), requesterID, role, accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, account)
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// DecideAccount lets a banker approve or reject a pending application
func (h *Handler) DecideAccount(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok || !h.requireBanker(w, role) {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.DecideAccount(r.Context(), accountID, requesterID, lifecycle.Decision(req.Decision), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, account)
}

type depositRequest struct {
	Amount      money.Amount `json:"amount"`
	Description string       `json:"description"`
}

// Deposit lets a banker credit an approved account
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok || !h.requireBanker(w, role) {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !h.decode(w, r, &req) {
		return
	}
	trx, err := h.svc.Deposit(r.Context(), accountID, requesterID, req.Amount, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, trx)
}
