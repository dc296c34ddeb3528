package api

import (
	"errors"
	"net/http"

	"github.com/alecgard/orgbook/internal/metrics"
	"github.com/alecgard/orgbook/internal/user"
	"github.com/alecgard/orgbook/internal/validate"
)

// authHandler groups registration and login handlers.
type authHandler struct {
	users   UserService
	metrics *metrics.Metrics
}

func newAuthHandler(users UserService, m *metrics.Metrics) *authHandler {
	return &authHandler{users: users, metrics: m}
}

// Register handles POST /auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	res, err := h.users.Register(r.Context(), req)
	if err != nil {
		if verr, ok := validate.As(err); ok {
			writeValidation(w, verr)
			return
		}
		writeInternal(w, r, err)
		return
	}

	h.metrics.IncRegistration()
	auditLog(r, "register", "user", res.User.ID)
	writeSuccess(w, http.StatusCreated, "Registration successful", res)
}

// Login handles POST /auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrAuthenticationFailed) {
			h.metrics.IncAuthFailure("login", "bad_credentials")
			writeError(w, http.StatusUnauthorized, "Bad request", "Authentication failed")
			return
		}
		writeInternal(w, r, err)
		return
	}

	h.metrics.IncAuthSuccess("login")
	writeSuccess(w, http.StatusOK, "Login successful", res)
}
