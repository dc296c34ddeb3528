package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alecgard/orgbook/internal/auth"
	"github.com/alecgard/orgbook/internal/metrics"
	"github.com/alecgard/orgbook/internal/organisation"
	"github.com/alecgard/orgbook/internal/validate"
	"github.com/go-chi/chi/v5"
)

// organisationsHandler groups organisation HTTP handlers.
type organisationsHandler struct {
	orgs    OrganisationService
	metrics *metrics.Metrics
}

func newOrganisationsHandler(orgs OrganisationService, m *metrics.Metrics) *organisationsHandler {
	return &organisationsHandler{orgs: orgs, metrics: m}
}

// List handles GET /organisations.
func (h *organisationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	orgs, err := h.orgs.List(r.Context(), userID)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Organisations retrieved successfully", map[string]any{
		"organisations": orgs,
	})
}

// Get handles GET /organisations/{orgId}.
func (h *organisationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	orgID := chi.URLParam(r, "orgId")

	org, err := h.orgs.Get(r.Context(), userID, orgID)
	if err != nil {
		h.writeOrgError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Organisation retrieved successfully", org)
}

// Create handles POST /organisations.
func (h *organisationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req organisation.CreateOrganisationInput
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	org, err := h.orgs.Create(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, organisation.ErrUserNotFound) {
			// Validly signed token for an account that no longer exists.
			slog.Warn("token subject not found", "user_id", userID, "path", r.URL.Path)
			h.metrics.IncAuthFailure("bearer", "unknown_subject")
			auth.WriteUnauthorized(w)
			return
		}
		h.writeOrgError(w, r, err)
		return
	}

	h.metrics.IncOrganisationCreated()
	auditLog(r, "create", "organisation", org.ID, "name", org.Name)
	writeSuccess(w, http.StatusCreated, "Organisation created successfully", org)
}

// AddMember handles POST /organisations/{orgId}/users.
func (h *organisationsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID json.RawMessage `json:"userId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeBadBody(w)
		return
	}
	memberID := rawString(req.UserID)

	requesterID := auth.UserIDFromContext(r.Context())
	orgID := chi.URLParam(r, "orgId")
	added, err := h.orgs.AddMember(r.Context(), requesterID, orgID, memberID)
	if err != nil {
		h.writeOrgError(w, r, err)
		return
	}

	h.metrics.IncMembershipAdded(added)
	auditLog(r, "add_member", "organisation", orgID, "member_id", memberID, "added", added)
	writeSuccess(w, http.StatusOK, "User added to organisation successfully", nil)
}

func (h *organisationsHandler) writeOrgError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := validate.As(err); ok {
		writeValidation(w, verr)
		return
	}
	if errors.Is(err, organisation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "error", "Organisation not found")
		return
	}
	writeInternal(w, r, err)
}

// rawString returns a JSON string value as-is and any other non-null value in
// its literal form, so that e.g. a numeric id fails field validation rather
// than body decoding.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
