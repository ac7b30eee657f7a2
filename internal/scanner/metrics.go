package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики конвейера сканирования
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о деградации бирж
// - Анализ латентности выборки в production

// ============ Метрики латентности ============

// FetchLatency - время запроса стакана/котировок с биржи
var FetchLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "fetch_latency_ms",
		Help:      "Latency of a market data fetch in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"exchange", "kind"}, // kind: ticker, orderbook, markets
)

// ScanDuration - длительность полного скана
var ScanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Duration of a full scan pass in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"mode"}, // mode: intra, inter
)

// ============ Счётчики событий ============

// OpportunitiesFound - обнаруженные возможности
var OpportunitiesFound = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "opportunities_total",
		Help:      "Number of arbitrage opportunities detected",
	},
	[]string{"type", "valuable"}, // type: cycle, spread; valuable: yes, no
)

// RateLimitBackoffs - кулдауны из-за rate limit бирж
var RateLimitBackoffs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "rate_limit_backoffs_total",
		Help:      "Number of rate limit cooldowns taken per exchange",
	},
	[]string{"exchange"},
)

// VenuesDropped - биржи, исключённые из возможности
var VenuesDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "venues_dropped_total",
		Help:      "Number of venues dropped from an opportunity",
	},
	[]string{"exchange", "reason"}, // reason: unknown_market, empty_book, permanent, retries_exhausted
)

// ============ Метрики состояния ============

// CollectionSymbols - размер карты доступности
var CollectionSymbols = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "collection_symbols",
		Help:      "Number of symbols in the availability collection",
	},
	[]string{"map"}, // map: symbols, singletons
)

// ActiveScans - сканы в полёте
var ActiveScans = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "scan",
		Name:      "active",
		Help:      "Number of scan passes currently in flight",
	},
)

// ============ Вспомогательные функции ============

// RecordOpportunity записывает обнаруженную возможность
func RecordOpportunity(kind string, valuable bool) {
	v := "no"
	if valuable {
		v = "yes"
	}
	OpportunitiesFound.WithLabelValues(kind, v).Inc()
}

// RecordBackoff записывает кулдаун rate limit
func RecordBackoff(exchange string) {
	RateLimitBackoffs.WithLabelValues(exchange).Inc()
}

// RecordDrop записывает исключение биржи из возможности
func RecordDrop(exchange, reason string) {
	VenuesDropped.WithLabelValues(exchange, reason).Inc()
}

// RecordFetchLatency записывает латентность выборки
func RecordFetchLatency(exchange, kind string, latencyMs float64) {
	FetchLatency.WithLabelValues(exchange, kind).Observe(latencyMs)
}

// UpdateCollectionSize обновляет метрики размера коллекции
func UpdateCollectionSize(symbols, singletons int) {
	CollectionSymbols.WithLabelValues("symbols").Set(float64(symbols))
	CollectionSymbols.WithLabelValues("singletons").Set(float64(singletons))
}
