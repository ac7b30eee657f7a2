package handlers

import (
	"net/http"
	"time"
)

// ScanController - управление конвейером сканирования
// Реализуется engine.Engine
type ScanController interface {
	TriggerScan()
	LastScan() time.Time
	Scanning() bool
}

// ScanHandler обрабатывает HTTP запросы управления сканированием.
//
// Endpoints:
// - POST /api/v1/scan - запросить внеочередной проход
// - GET /api/v1/scan/status - состояние конвейера
type ScanHandler struct {
	engine ScanController
}

// NewScanHandler создает новый ScanHandler
func NewScanHandler(engine ScanController) *ScanHandler {
	return &ScanHandler{engine: engine}
}

// Trigger запрашивает внеочередной проход
// Запрос не ждет завершения: проход выполняется асинхронно
//
// POST /api/v1/scan
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	h.engine.TriggerScan()
	writeJSON(w, http.StatusAccepted, SuccessResponse{Message: "scan scheduled"})
}

// Status возвращает состояние конвейера
//
// GET /api/v1/scan/status
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"scanning": h.engine.Scanning(),
	}
	if last := h.engine.LastScan(); !last.IsZero() {
		status["last_scan"] = last
	}

	writeJSON(w, http.StatusOK, status)
}
