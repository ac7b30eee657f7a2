package handlers

import (
	"context"
	"errors"
	"net/http"

	"arbscan/internal/catalog"
	"arbscan/pkg/utils"
)

// CollectionSource - доступ к коллекции рынков
// Реализуется catalog.Builder
type CollectionSource interface {
	Cached() (*catalog.Collection, bool, error)
	ExchangesFor(ctx context.Context, symbol string) ([]string, error)
	BuildAll(ctx context.Context, opts catalog.BuildOptions) (*catalog.Collection, error)
}

// CollectionHandler обрабатывает HTTP запросы к коллекции рынков.
//
// Endpoints:
// - GET /api/v1/collections - текущая коллекция целиком
// - GET /api/v1/collections/venues?symbol=BTC/USDT - биржи символа
// - POST /api/v1/collections/rebuild - перестроить и сохранить
type CollectionHandler struct {
	source CollectionSource
	venues []string
}

// NewCollectionHandler создает новый CollectionHandler
// venues - биржи для перестроения коллекции
func NewCollectionHandler(source CollectionSource, venues []string) *CollectionHandler {
	return &CollectionHandler{source: source, venues: venues}
}

// GetCollection возвращает сохраненную коллекцию
//
// GET /api/v1/collections
func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, found, err := h.source.Cached()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load collection", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "collection not built yet", "run POST /api/v1/collections/rebuild")
		return
	}

	writeJSON(w, http.StatusOK, col)
}

// GetVenues возвращает биржи, торгующие символ
// Символ содержит "/", поэтому передается query-параметром
//
// GET /api/v1/collections/venues?symbol=BTC/USDT
func (h *CollectionHandler) GetVenues(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required", "pass ?symbol=BASE/QUOTE")
		return
	}
	if err := utils.ValidateSymbol(symbol); err != nil {
		writeError(w, http.StatusBadRequest, "invalid symbol", err.Error())
		return
	}

	venues, err := h.source.ExchangesFor(r.Context(), symbol)
	if err != nil {
		var unknown *catalog.ErrUnknownSymbol
		if errors.As(err, &unknown) {
			writeError(w, http.StatusNotFound, "unknown symbol", symbol)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve symbol", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"venues": venues,
	})
}

// Rebuild перестраивает коллекцию опросом бирж и сохраняет её
//
// POST /api/v1/collections/rebuild
func (h *CollectionHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	col, err := h.source.BuildAll(r.Context(), catalog.BuildOptions{
		Venues: h.venues,
		Write:  true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rebuild collection", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "collection rebuilt",
		Data: map[string]int{
			"symbols":    len(col.Symbols),
			"singletons": len(col.Singletons),
		},
	})
}
