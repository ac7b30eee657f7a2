// Package engine - периодический конвейер сканирования:
// коллекция → котировки → графы курсов → поиск циклов → публикация.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arbscan/internal/bellman"
	"arbscan/internal/catalog"
	"arbscan/internal/config"
	"arbscan/internal/exchange"
	"arbscan/internal/graph"
	"arbscan/internal/models"
	"arbscan/internal/scanner"
	"arbscan/pkg/utils"
)

// Hub публикует возможности подписчикам в реальном времени
// Реализуется пакетом internal/websocket
type Hub interface {
	BroadcastCycle(opp *models.CycleOpportunity)
	BroadcastSpread(opp *models.SpreadOpportunity)
}

// Repository сохраняет найденные возможности
type Repository interface {
	SaveCycle(ctx context.Context, opp *models.CycleOpportunity) error
	SaveSpread(ctx context.Context, opp *models.SpreadOpportunity) error
}

// Engine гоняет сканы по расписанию и по запросу
type Engine struct {
	cfg     *config.Config
	source  catalog.ClientSource
	builder *catalog.Builder
	repo    Repository
	hub     Hub
	log     *utils.Logger

	trigger chan struct{}

	mu       sync.Mutex
	lastScan time.Time
	scanning bool
}

// New создаёт движок; repo и hub могут быть nil (скан без публикации)
func New(cfg *config.Config, source catalog.ClientSource, builder *catalog.Builder,
	repo Repository, hub Hub, log *utils.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		source:  source,
		builder: builder,
		repo:    repo,
		hub:     hub,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
}

// Run крутит сканы до отмены контекста
// Первый проход стартует сразу, дальше по интервалу или по TriggerScan
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Scan.Interval)
	defer ticker.Stop()

	if err := e.ScanOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Error("scan failed", utils.Err(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-e.trigger:
		}

		if err := e.ScanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			e.log.Error("scan failed", utils.Err(err))
		}
	}
}

// TriggerScan запрашивает внеочередной проход; уже ожидающий запрос не дублируется
func (e *Engine) TriggerScan() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// LastScan возвращает время завершения последнего прохода
func (e *Engine) LastScan() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastScan
}

// Scanning сообщает идёт ли проход прямо сейчас
func (e *Engine) Scanning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanning
}

// ScanOnce выполняет один полный проход: внутрибиржевые циклы,
// межбиржевой мультиграф и межбиржевые спреды
//
// Клиенты бирж создаются на время прохода и закрываются ровно один раз
// на любом пути выхода. Частичный отказ биржи проход не прерывает.
func (e *Engine) ScanOnce(ctx context.Context) error {
	e.mu.Lock()
	if e.scanning {
		e.mu.Unlock()
		return nil
	}
	e.scanning = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.lastScan = time.Now().UTC()
		e.scanning = false
		e.mu.Unlock()
	}()

	scanner.ActiveScans.Inc()
	defer scanner.ActiveScans.Dec()

	scanID := fmt.Sprintf("scan-%d", time.Now().UTC().UnixNano())
	e.log.Info("scan started", utils.ScanID(scanID),
		utils.Any("venues", e.cfg.Scan.Venues))

	clients := make([]exchange.Client, 0, len(e.cfg.Scan.Venues))
	defer func() {
		for _, c := range clients {
			if err := c.Close(); err != nil {
				e.log.Warn("venue close failed", utils.Exchange(c.ID()), utils.Err(err))
			}
		}
	}()
	for _, name := range e.cfg.Scan.Venues {
		c, err := e.source.NewClient(name)
		if err != nil {
			return err
		}
		clients = append(clients, c)
	}

	start := time.Now()
	e.scanIntra(ctx, scanID, clients)
	e.scanMulti(ctx, scanID, clients)
	scanner.ScanDuration.WithLabelValues("intra").Observe(time.Since(start).Seconds())

	start = time.Now()
	e.scanSpreads(ctx, scanID, clients)
	scanner.ScanDuration.WithLabelValues("inter").Observe(time.Since(start).Seconds())

	e.log.Info("scan finished", utils.ScanID(scanID))
	return ctx.Err()
}

// scanIntra ищет циклы внутри каждой биржи отдельно
func (e *Engine) scanIntra(ctx context.Context, scanID string, clients []exchange.Client) {
	opts := graph.BuildOptions{Fees: e.cfg.Scan.Fees, Depth: e.cfg.Scan.Depth}

	for _, client := range clients {
		if ctx.Err() != nil {
			return
		}

		g, err := graph.BuildVenueGraph(ctx, client, opts, e.log)
		if err != nil {
			e.log.Warn("venue graph build failed",
				utils.Exchange(client.ID()), utils.Err(err))
			continue
		}

		finder, err := bellman.NewFinder(g, e.cfg.Scan.Source, bellman.Options{
			UniquePaths: e.cfg.Scan.UniquePaths,
			Depth:       e.cfg.Scan.Depth,
		})
		if err != nil {
			// Биржа не торгует валюту-источник
			e.log.Debug("source currency absent on venue",
				utils.Exchange(client.ID()), utils.Err(err))
			continue
		}

		for {
			res, ok := finder.Next()
			if !ok {
				break
			}
			e.publishCycle(ctx, scanID, client.ID(), g, res)
		}
	}
}

// scanMulti ищет циклы через лучшие курсы разных бирж
func (e *Engine) scanMulti(ctx context.Context, scanID string, clients []exchange.Client) {
	if len(clients) < 2 || ctx.Err() != nil {
		return
	}

	mg, err := graph.BuildMultiVenueGraph(ctx, clients, graph.MultiBuildOptions{
		BuildOptions: graph.BuildOptions{Fees: e.cfg.Scan.Fees, Depth: e.cfg.Scan.Depth},
		Strict:       e.cfg.Scan.Strict,
	}, e.log)
	if err != nil {
		e.log.Warn("multi-venue graph build failed", utils.Err(err))
		return
	}
	// Валюты с одним рынком не образуют циклов
	mg = mg.KCore(2)

	finder, reduced, err := bellman.NewMultigraphFinder(mg, e.cfg.Scan.Source, bellman.Options{
		UniquePaths: e.cfg.Scan.UniquePaths,
		Depth:       e.cfg.Scan.Depth,
	})
	if err != nil {
		e.log.Debug("source currency absent in combined graph", utils.Err(err))
		return
	}

	for {
		res, ok := finder.Next()
		if !ok {
			return
		}
		e.publishCycle(ctx, scanID, "cross", reduced, res)
	}
}

// scanSpreads прогоняет массовый сканер по коллекции
func (e *Engine) scanSpreads(ctx context.Context, scanID string, clients []exchange.Client) {
	col, err := e.loadCollection(ctx)
	if err != nil {
		e.log.Warn("collection unavailable, spread scan skipped", utils.Err(err))
		return
	}
	scanner.UpdateCollectionSize(len(col.Symbols), len(col.Singletons))

	s := scanner.NewSuperScanner(clients, col, scanner.Options{
		ScanID:   scanID,
		Cooldown: e.cfg.Scan.Cooldown,
		Gate:     e.cfg.Scan.Gate,
		Stagger:  e.cfg.Scan.Stagger,
		Depth:    e.cfg.Scan.OrderBookDepth,
	}, e.log)

	for opp := range s.Scan(ctx) {
		if !opp.Valuable() {
			continue
		}
		opp.CreatedAt = time.Now().UTC()

		e.log.Info("spread opportunity",
			utils.ScanID(scanID), utils.Symbol(opp.Symbol),
			utils.String("bid_venue", opp.HighestBid.Venue),
			utils.String("ask_venue", opp.LowestAsk.Venue),
			utils.Float64("spread_pct", opp.SpreadPercent()))

		if e.hub != nil {
			e.hub.BroadcastSpread(opp)
		}
		if e.repo != nil {
			if err := e.repo.SaveSpread(ctx, opp); err != nil {
				e.log.Error("spread save failed", utils.Err(err))
			}
		}
	}
}

// publishCycle конвертирует результат поиска и рассылает его
func (e *Engine) publishCycle(ctx context.Context, scanID, venue string, g *graph.Digraph, res bellman.Result) {
	ratio, ledger, err := bellman.ProfitLedger(g, res.Cycle, e.cfg.Scan.Depth)
	if err != nil {
		e.log.Error("cycle accounting failed", utils.Err(err))
		return
	}
	if ratio < e.cfg.Scan.MinProfit {
		scanner.RecordOpportunity("cycle", false)
		return
	}
	scanner.RecordOpportunity("cycle", true)

	opp := &models.CycleOpportunity{
		ScanID:    scanID,
		Venue:     venue,
		Cycle:     res.Cycle,
		Profit:    ratio,
		CreatedAt: time.Now().UTC(),
	}
	if e.cfg.Scan.Depth {
		opp.MaxVolume = res.MaxVolume
	}
	for _, entry := range ledger {
		opp.Ledger = append(opp.Ledger, models.TradeLeg{
			Market: entry.Market,
			Venue:  entry.Venue,
			Side:   entry.OrderType.String(),
			Rate:   entry.NoFeeRate,
			Fee:    entry.Fee,
			Volume: entry.Volume,
		})
	}

	e.log.Info("cycle opportunity",
		utils.ScanID(scanID), utils.Exchange(venue),
		utils.Any("cycle", res.Cycle),
		utils.Float64("profit_pct", opp.ProfitPercent()))
	if desc, err := bellman.DescribePath(g, res.Cycle, e.cfg.Scan.Depth); err == nil {
		e.log.Debug("cycle trades", utils.ScanID(scanID), utils.String("path", desc))
	}

	if e.hub != nil {
		e.hub.BroadcastCycle(opp)
	}
	if e.repo != nil {
		if err := e.repo.SaveCycle(ctx, opp); err != nil {
			e.log.Error("cycle save failed", utils.Err(err))
		}
	}
}

// loadCollection читает сохранённую коллекцию или строит её вживую
func (e *Engine) loadCollection(ctx context.Context) (*catalog.Collection, error) {
	if !e.cfg.Collections.RebuildOnStart {
		if col, found, err := e.builder.Cached(); err == nil && found {
			return col, nil
		}
	}
	return e.builder.BuildAll(ctx, catalog.BuildOptions{
		Venues: e.cfg.Scan.Venues,
		Write:  true,
	})
}
