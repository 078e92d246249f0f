package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexus-geo/nexus-gateway/internal/scope"
	"github.com/nexus-geo/nexus-gateway/internal/storage"
)

// grantRequest is the request body for creating a grant.
type grantRequest struct {
	SubjectID      string `json:"subject_id"`
	MunicipalityID int64  `json:"municipality_id,omitempty"`
	UF             string `json:"uf,omitempty"`
	Exclusive      bool   `json:"exclusive,omitempty"`
	ValidUntil     string `json:"valid_until,omitempty"` // RFC 3339
}

// grantResponse is the wire shape of a grant.
type grantResponse struct {
	ID             int64  `json:"id"`
	SubjectID      string `json:"subject_id"`
	MunicipalityID int64  `json:"municipality_id,omitempty"`
	UF             string `json:"uf,omitempty"`
	Exclusive      bool   `json:"exclusive"`
	ValidUntil     string `json:"valid_until,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toGrantResponse(g scope.Grant) grantResponse {
	resp := grantResponse{
		ID:             g.ID,
		SubjectID:      g.SubjectID,
		MunicipalityID: g.MunicipalityID,
		UF:             g.StateCode,
		Exclusive:      g.Exclusive,
		CreatedAt:      g.CreatedAt.UTC().Format(time.RFC3339),
	}
	if g.ValidUntil != nil {
		resp.ValidUntil = g.ValidUntil.UTC().Format(time.RFC3339)
	}
	return resp
}

// HandleCreateGrant creates a grant for a subject.
// POST /api/grants
func (h *Handler) HandleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.SubjectID == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "subject_id is required")
		return
	}

	g := &scope.Grant{
		SubjectID:      req.SubjectID,
		MunicipalityID: req.MunicipalityID,
		StateCode:      req.UF,
		Exclusive:      req.Exclusive,
	}
	if req.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ValidUntil)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "valid_until must be RFC 3339")
			return
		}
		g.ValidUntil = &t
	}

	id, err := h.storage.AddGrant(r.Context(), g)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidGrant) {
			WriteErrorWithHint(w, http.StatusBadRequest, ErrCodeInvalidRequest,
				err.Error(), "set either municipality_id or uf, not both")
			return
		}
		h.logger.Error("failed to create grant", "error", err)
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	g.ID = id
	g.CreatedAt = time.Now()
	h.logger.Info("grant created", "id", id, "subject", g.SubjectID)
	writeJSON(w, http.StatusCreated, toGrantResponse(*g))
}

// HandleListGrants lists grants, optionally filtered by subject.
// GET /api/grants?subject=<id>
func (h *Handler) HandleListGrants(w http.ResponseWriter, r *http.Request) {
	var (
		grants []scope.Grant
		err    error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		grants, err = h.storage.GrantsForSubject(r.Context(), subject)
	} else {
		grants, err = h.storage.ListGrants(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list grants", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	resp := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": resp})
}

// HandleDeleteGrant deletes a grant by ID.
// DELETE /api/grants/{id}
func (h *Handler) HandleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid grant id")
		return
	}
	if err := h.storage.DeleteGrant(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "grant not found")
			return
		}
		h.logger.Error("failed to delete grant", "id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}
	h.logger.Info("grant deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// tokenRequest is the request body for creating an admin token.
type tokenRequest struct {
	Name string `json:"name"`
}

// HandleCreateToken creates an admin token. The generated secret is returned
// exactly once.
// POST /api/tokens
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return
	}

	secret, err := generateSecret()
	if err != nil {
		h.logger.Error("failed to generate token secret", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	id, err := h.storage.CreateAdminToken(r.Context(), req.Name, secret)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			WriteError(w, http.StatusConflict, ErrCodeDuplicate, "a token with that name already exists")
			return
		}
		h.logger.Error("failed to create admin token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	h.logger.Info("admin token created", "id", id, "name", req.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     id,
		"name":   req.Name,
		"secret": secret,
	})
}

// HandleListTokens lists admin tokens (never secrets).
// GET /api/tokens
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.storage.ListAdminTokens(r.Context())
	if err != nil {
		h.logger.Error("failed to list admin tokens", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	type tokenResponse struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
	}
	resp := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, tokenResponse{
			ID:        t.ID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": resp})
}

// HandleDeleteToken revokes an admin token by ID.
// DELETE /api/tokens/{id}
func (h *Handler) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid token id")
		return
	}
	if err := h.storage.DeleteAdminToken(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "token not found")
			return
		}
		h.logger.Error("failed to delete admin token", "id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}
	h.logger.Info("admin token deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// generateSecret returns a 64-char hex secret from 32 random bytes.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(data)
}
