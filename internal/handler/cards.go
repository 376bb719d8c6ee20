package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/altbank/backoffice/internal/lifecycle"
	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/money"
)

type applyCardRequest struct {
	AccountID     uuid.UUID    `json:"account_id"`
	MonthlySalary money.Amount `json:"monthly_salary"`
}

// ApplyForCard files a debit-card application against an account the
// requester owns. Applications below the salary threshold come back
// already rejected.
func (h *Handler) ApplyForCard(w http.ResponseWriter, r *http.Request) {
	requesterID, _, ok := h.requester(w, r)
	if !ok {
		return
	}
	var req applyCardRequest
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.svc.ApplyForCard(r.Context(), requesterID, req.AccountID, req.MonthlySalary)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, card)
}

// ListCards lists cards visible to the requester. Bankers may filter by
// status and account_id.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok {
		return
	}

	status := models.ApplicationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
		return
	}
	var accountID *uuid.UUID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid account_id filter"})
			return
		}
		accountID = &id
	}

	cards, err := h.svc.ListCards(r.Context(), requesterID, role, status, accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, cards)
}

// GetCard retrieves a single card visible to the requester
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok {
		return
	}
	cardID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), requesterID, role, cardID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, card)
}

// DecideCard lets a banker approve or reject a pending card application
func (h *Handler) DecideCard(w http.ResponseWriter, r *http.Request) {
	requesterID, role, ok := h.requester(w, r)
	if !ok || !h.requireBanker(w, role) {
		return
	}
	cardID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.svc.DecideCard(r.Context(), cardID, requesterID, lifecycle.Decision(req.Decision), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, card)
}
