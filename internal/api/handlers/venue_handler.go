package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"arbscan/internal/exchange"
	"arbscan/internal/repository"
)

// VenueRegistry - список поддерживаемых бирж
// Реализуется exchange.Registry
type VenueRegistry interface {
	Names() []string
	IsSupported(name string) bool
}

// CredentialsStore - хранилище шифротекста API ключей
// Реализуется repository.CredentialsRepository
type CredentialsStore interface {
	Upsert(ctx context.Context, venue, sealed string) error
	Delete(ctx context.Context, venue string) error
	List(ctx context.Context) ([]string, error)
}

// VenueHandler обрабатывает HTTP запросы к биржам и их ключам.
//
// Endpoints:
// - GET /api/v1/venues - поддерживаемые биржи и наличие ключей
// - PUT /api/v1/venues/{name}/credentials - сохранить API ключи
// - DELETE /api/v1/venues/{name}/credentials - удалить API ключи
//
// Ключи шифруются AES-256-GCM до записи; plaintext живет только
// в памяти запроса.
type VenueHandler struct {
	registry VenueRegistry
	creds    CredentialsStore
	encKey   []byte
}

// NewVenueHandler создает новый VenueHandler
// creds и encKey могут быть nil - тогда доступен только список бирж
func NewVenueHandler(registry VenueRegistry, creds CredentialsStore, encKey []byte) *VenueHandler {
	return &VenueHandler{registry: registry, creds: creds, encKey: encKey}
}

// venueInfo - элемент ответа GET /venues
type venueInfo struct {
	Name           string `json:"name"`
	HasCredentials bool   `json:"has_credentials"`
}

// credentialsRequest - тело PUT /venues/{name}/credentials
type credentialsRequest struct {
	APIKey     string `json:"api_key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

// GetVenues возвращает поддерживаемые биржи
//
// GET /api/v1/venues
func (h *VenueHandler) GetVenues(w http.ResponseWriter, r *http.Request) {
	withCreds := make(map[string]bool)
	if h.creds != nil {
		venues, err := h.creds.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list credentials", err.Error())
			return
		}
		for _, v := range venues {
			withCreds[v] = true
		}
	}

	names := h.registry.Names()
	out := make([]venueInfo, 0, len(names))
	for _, name := range names {
		out = append(out, venueInfo{Name: name, HasCredentials: withCreds[name]})
	}

	writeJSON(w, http.StatusOK, out)
}

// PutCredentials шифрует и сохраняет API ключи биржи
//
// PUT /api/v1/venues/{name}/credentials
func (h *VenueHandler) PutCredentials(w http.ResponseWriter, r *http.Request) {
	if h.creds == nil {
		writeError(w, http.StatusServiceUnavailable, "credential storage disabled", "database is not configured")
		return
	}
	if len(h.encKey) == 0 {
		writeError(w, http.StatusServiceUnavailable, "credential storage disabled", "ENCRYPTION_KEY is not configured")
		return
	}

	name := mux.Vars(r)["name"]
	if !h.registry.IsSupported(name) {
		writeError(w, http.StatusNotFound, "unsupported exchange", name)
		return
	}

	var req credentialsRequest
	if err := handlerJSON.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.APIKey == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "api_key and secret are required", "")
		return
	}

	sealed, err := exchange.SealCredentials(exchange.Credentials{
		APIKey:     req.APIKey,
		Secret:     req.Secret,
		Passphrase: req.Passphrase,
	}, h.encKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to seal credentials", err.Error())
		return
	}

	if err := h.creds.Upsert(r.Context(), name, sealed); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store credentials", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "credentials stored"})
}

// DeleteCredentials удаляет API ключи биржи
//
// DELETE /api/v1/venues/{name}/credentials
func (h *VenueHandler) DeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if h.creds == nil {
		writeError(w, http.StatusServiceUnavailable, "credential storage disabled", "database is not configured")
		return
	}

	name := mux.Vars(r)["name"]
	if err := h.creds.Delete(r.Context(), name); err != nil {
		if errors.Is(err, repository.ErrCredentialsNotFound) {
			writeError(w, http.StatusNotFound, "no credentials stored", name)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete credentials", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "credentials deleted"})
}
