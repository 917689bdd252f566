package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/logging"
)

const maxRequestBytes = 64 * 1024

// Authenticator resolves the caller identity from a request.
type Authenticator func(r *http.Request) (model.Identity, error)

// Handler exposes a Store over a small JSON API.
type Handler struct {
	store  Store
	auth   Authenticator
	logger *logging.Logger
	mux    *http.ServeMux
}

// NewHandler serves store. When auth is non-nil, profile lookups and creation are limited
// to the caller's own identity.
func NewHandler(store Store, auth Authenticator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{store: store, auth: auth, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /api/profiles", h.handleFindByUID)
	h.mux.HandleFunc("GET /api/profiles/{id}", h.handleGet)
	h.mux.HandleFunc("POST /api/profiles", h.handleCreateProfile)
	h.mux.HandleFunc("DELETE /api/profiles/{id}", h.handleDeleteProfile)
	h.mux.HandleFunc("POST /api/accounts", h.handleCreateAccount)
	h.mux.HandleFunc("DELETE /api/accounts/{id}", h.handleDeleteAccount)
	h.mux.HandleFunc("POST /api/audit", h.handleAppendAudit)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleFindByUID(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid is required")
		return
	}
	if !h.authorize(w, r, uid) {
		return
	}
	profile, err := h.store.FindByUID(r.Context(), uid)
	if err != nil {
		h.writeStoreError(w, "find profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "get profile", err)
		return
	}
	if !h.authorize(w, r, profile.UID) {
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.Profile
	if !decodeBody(w, r, &profile) {
		return
	}
	if !h.authorize(w, r, profile.UID) {
		return
	}
	created, err := h.store.CreateProfile(r.Context(), profile)
	if err != nil {
		h.writeStoreError(w, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.auth != nil {
		profile, err := h.store.Get(r.Context(), id)
		if err != nil {
			h.writeStoreError(w, "delete profile", err)
			return
		}
		if !h.authorize(w, r, profile.UID) {
			return
		}
	}
	if err := h.store.DeleteProfile(r.Context(), id); err != nil {
		h.writeStoreError(w, "delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var account model.Account
	if !decodeBody(w, r, &account) {
		return
	}
	if !h.authorize(w, r, account.UID) {
		return
	}
	created, err := h.store.CreateAccount(r.Context(), account)
	if err != nil {
		h.writeStoreError(w, "create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		if _, ok := h.caller(w, r); !ok {
			return
		}
	}
	if err := h.store.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAppendAudit(w http.ResponseWriter, r *http.Request) {
	var entry model.AuditEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	if !h.authorize(w, r, entry.UID) {
		return
	}
	if err := h.store.AppendAudit(r.Context(), entry); err != nil {
		h.writeStoreError(w, "append audit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, err := h.auth(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return model.Identity{}, false
	}
	return identity, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, uid string) bool {
	if h.auth == nil {
		return true
	}
	identity, ok := h.caller(w, r)
	if !ok {
		return false
	}
	if identity.UID != uid {
		writeError(w, http.StatusForbidden, "identity mismatch")
		return false
	}
	return true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "profile already exists")
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(logging.CategoryProfiles, op+" failed", err, nil)
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Client is a Store backed by the Handler API. The browser build uses it.
type Client struct {
	base   string
	http   *http.Client
	tokens func() string
}

// NewClient talks to the API at base. tokens, when non-nil, supplies a bearer token per call.
func NewClient(base string, httpClient *http.Client, tokens func() string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimSuffix(base, "/"), http: httpClient, tokens: tokens}
}

func (c *Client) FindByUID(ctx context.Context, uid string) (model.Profile, error) {
	var profile model.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles?uid="+url.QueryEscape(uid), nil, &profile)
	return profile, err
}

func (c *Client) Get(ctx context.Context, id string) (model.Profile, error) {
	var profile model.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(id), nil, &profile)
	return profile, err
}

func (c *Client) CreateProfile(ctx context.Context, profile model.Profile) (model.Profile, error) {
	var created model.Profile
	err := c.do(ctx, http.MethodPost, "/api/profiles", profile, &created)
	return created, err
}

func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/profiles/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	var created model.Account
	err := c.do(ctx, http.MethodPost, "/api/accounts", account, &created)
	return created, err
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/accounts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	return c.do(ctx, http.MethodPost, "/api/audit", entry, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxRequestBytes)).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s failed: %s: %s", method, path, resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
