package api

import (
	"errors"
	"net/http"

	"github.com/alecgard/orgbook/internal/auth"
	"github.com/alecgard/orgbook/internal/user"
	"github.com/go-chi/chi/v5"
)

// usersHandler serves user profiles.
type usersHandler struct {
	users UserReader
	orgs  OrganisationService
}

func newUsersHandler(users UserReader, orgs OrganisationService) *usersHandler {
	return &usersHandler{users: users, orgs: orgs}
}

// GetUser handles GET /users/{id}. Callers see themselves and users they
// share an organisation with; every other id is reported as not found.
func (h *usersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	viewerID := auth.UserIDFromContext(r.Context())

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeUserNotFound(w)
			return
		}
		writeInternal(w, r, err)
		return
	}

	ok, err := h.orgs.CanView(r.Context(), viewerID, u.ID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if !ok {
		writeUserNotFound(w)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved successfully", u)
}

func writeUserNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "error", "User not found")
}
