package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbscan/internal/api/handlers"
	"arbscan/internal/api/middleware"
	"arbscan/internal/websocket"
	"arbscan/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Opportunities handlers.OpportunityStore
	Collections   handlers.CollectionSource
	Engine        handlers.ScanController
	Registry      handlers.VenueRegistry
	Credentials   handlers.CredentialsStore

	// EncryptionKey - мастер-ключ AES-256 для API ключей бирж
	EncryptionKey []byte

	// Venues - биржи для перестроения коллекции
	Venues []string

	// TokenHash - bcrypt-хеш токена доступа; пустой отключает auth
	TokenHash string

	Hub *websocket.Hub
	Log *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /opportunities/
//	│   ├── GET /cycles - последние циклы (?venue=&limit=)
//	│   ├── GET /cycles/top - самые прибыльные (?hours=&limit=)
//	│   ├── GET /cycles/{id} - один цикл с леджером
//	│   └── GET /spreads - межбиржевые спреды (?symbol=&limit=)
//	├── /collections/
//	│   ├── GET / - текущая коллекция
//	│   ├── GET /venues - биржи символа (?symbol=)
//	│   └── POST /rebuild - перестроить коллекцию
//	├── /scan/
//	│   ├── POST / - внеочередной проход
//	│   └── GET /status - состояние конвейера
//	└── /venues/
//	    ├── GET / - поддерживаемые биржи
//	    ├── PUT /{name}/credentials - сохранить API ключи
//	    └── DELETE /{name}/credentials - удалить API ключи
//
// /ws/stream - WebSocket поток возможностей
// /metrics   - Prometheus метрики
// /health    - health check
//
// Middleware: Recovery → Logging → CORS для всех маршрутов,
// Auth только для /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.TokenHash))

	if deps.Opportunities != nil {
		h := handlers.NewOpportunityHandler(deps.Opportunities)
		api.HandleFunc("/opportunities/cycles", h.GetCycles).Methods("GET")
		api.HandleFunc("/opportunities/cycles/top", h.GetTopCycles).Methods("GET")
		api.HandleFunc("/opportunities/cycles/{id:[0-9]+}", h.GetCycle).Methods("GET")
		api.HandleFunc("/opportunities/spreads", h.GetSpreads).Methods("GET")
	}

	if deps.Collections != nil {
		h := handlers.NewCollectionHandler(deps.Collections, deps.Venues)
		api.HandleFunc("/collections", h.GetCollection).Methods("GET")
		api.HandleFunc("/collections/venues", h.GetVenues).Methods("GET")
		api.HandleFunc("/collections/rebuild", h.Rebuild).Methods("POST")
	}

	if deps.Engine != nil {
		h := handlers.NewScanHandler(deps.Engine)
		api.HandleFunc("/scan", h.Trigger).Methods("POST")
		api.HandleFunc("/scan/status", h.Status).Methods("GET")
	}

	if deps.Registry != nil {
		h := handlers.NewVenueHandler(deps.Registry, deps.Credentials, deps.EncryptionKey)
		api.HandleFunc("/venues", h.GetVenues).Methods("GET")
		api.HandleFunc("/venues/{name}/credentials", h.PutCredentials).Methods("PUT")
		api.HandleFunc("/venues/{name}/credentials", h.DeleteCredentials).Methods("DELETE")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
