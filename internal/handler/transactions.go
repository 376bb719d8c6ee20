package handler

import (
	"net/http"

	"github.com/altbank/backoffice/internal/money"
)

type transferRequest struct {
	TargetIBAN     string       `json:"target_iban"`
	Amount         money.Amount `json:"amount"`
	Description    string       `json:"description"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// Transfer moves money from the requester's account to the IBAN named
// in the request. Retries with the same idempotency key are rejected
// with a conflict.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	requesterID, _, ok := h.requester(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	trx, err := h.svc.Transfer(r.Context(), requesterID, accountID, req.TargetIBAN, req.Amount, req.Description, req.IdempotencyKey)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, trx)
}

// ListTransactions lists an account's ledger entries, newest first
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	transactions, err := h.svc.ListTransactions(r.Context(), requesterID, role, accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, transactions)
}
