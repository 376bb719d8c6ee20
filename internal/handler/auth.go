package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/altbank/backoffice/internal/models"
	"github.com/altbank/backoffice/internal/repository"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "email, name and a password of at least 8 characters are required"})
		return
	}

	role := models.Role(strings.ToUpper(req.Role))
	if role == "" {
		role = models.RoleClient
	}
	if role != models.RoleClient && role != models.RoleBanker {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "role must be CLIENT or BANKER"})
		return
	}

	user, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password, role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			h.respond(w, http.StatusConflict, errorResponse{Error: "email is already registered"})
			return
		}
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, loginResponse{Token: token})
}
