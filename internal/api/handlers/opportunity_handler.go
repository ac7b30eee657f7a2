package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"arbscan/internal/models"
	"arbscan/internal/repository"
	"arbscan/pkg/utils"
)

// OpportunityStore - чтение сохраненных возможностей
// Реализуется repository.OpportunityRepository
type OpportunityStore interface {
	GetCycleByID(ctx context.Context, id int) (*models.CycleOpportunity, error)
	GetRecentCycles(ctx context.Context, limit int) ([]*models.CycleOpportunity, error)
	GetCyclesByVenue(ctx context.Context, venue string, limit int) ([]*models.CycleOpportunity, error)
	GetTopCycles(ctx context.Context, since time.Time, limit int) ([]*models.CycleOpportunity, error)
	GetRecentSpreads(ctx context.Context, limit int) ([]*models.SpreadOpportunity, error)
	GetSpreadsBySymbol(ctx context.Context, symbol string, limit int) ([]*models.SpreadOpportunity, error)
}

// OpportunityHandler обрабатывает HTTP запросы к найденным возможностям.
//
// Endpoints:
// - GET /api/v1/opportunities/cycles?venue=&limit= - последние циклы
// - GET /api/v1/opportunities/cycles/top?hours=&limit= - самые прибыльные
// - GET /api/v1/opportunities/cycles/{id} - один цикл с леджером
// - GET /api/v1/opportunities/spreads?symbol=&limit= - межбиржевые спреды
type OpportunityHandler struct {
	store OpportunityStore
}

// NewOpportunityHandler создает новый OpportunityHandler
func NewOpportunityHandler(store OpportunityStore) *OpportunityHandler {
	return &OpportunityHandler{store: store}
}

// GetCycles возвращает последние циклы, опционально по одной бирже
//
// GET /api/v1/opportunities/cycles?venue=binance&limit=20
func (h *OpportunityHandler) GetCycles(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 200)

	var (
		cycles []*models.CycleOpportunity
		err    error
	)
	if venue := r.URL.Query().Get("venue"); venue != "" {
		cycles, err = h.store.GetCyclesByVenue(r.Context(), venue, limit)
	} else {
		cycles, err = h.store.GetRecentCycles(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get cycles", err.Error())
		return
	}

	if cycles == nil {
		cycles = []*models.CycleOpportunity{}
	}
	writeJSON(w, http.StatusOK, cycles)
}

// GetTopCycles возвращает самые прибыльные циклы за период
//
// GET /api/v1/opportunities/cycles/top?hours=24&limit=10
func (h *OpportunityHandler) GetTopCycles(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 10, 100)

	hours := 24
	if s := r.URL.Query().Get("hours"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid hours", "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	since := utils.GetLastNHours(hours).Start
	cycles, err := h.store.GetTopCycles(r.Context(), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get top cycles", err.Error())
		return
	}

	if cycles == nil {
		cycles = []*models.CycleOpportunity{}
	}
	writeJSON(w, http.StatusOK, cycles)
}

// GetCycle возвращает один цикл по ID
//
// GET /api/v1/opportunities/cycles/{id}
func (h *OpportunityHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id", "id must be an integer")
		return
	}

	cycle, err := h.store.GetCycleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOpportunityNotFound) {
			writeError(w, http.StatusNotFound, "cycle not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get cycle", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cycle)
}

// GetSpreads возвращает последние спреды, опционально по одному символу
//
// GET /api/v1/opportunities/spreads?symbol=BTC/USDT&limit=20
func (h *OpportunityHandler) GetSpreads(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 200)

	var (
		spreads []*models.SpreadOpportunity
		err     error
	)
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		spreads, err = h.store.GetSpreadsBySymbol(r.Context(), symbol, limit)
	} else {
		spreads, err = h.store.GetRecentSpreads(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get spreads", err.Error())
		return
	}

	if spreads == nil {
		spreads = []*models.SpreadOpportunity{}
	}
	writeJSON(w, http.StatusOK, spreads)
}
