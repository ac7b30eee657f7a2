package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"arbscan/internal/catalog"
	"arbscan/internal/exchange"
	"arbscan/internal/models"
	"arbscan/pkg/utils"
)

// super.go - массовое сканирование всей коллекции
//
// На каждый символ коллекции запускается своя горутина. Чтобы
// параллельные возможности не добивали уже залимиченную биржу,
// сканер держит общий набор rate_limited_venues под мьютексом:
// возможность, чья биржа в наборе, откладывает диспетчеризацию.

// Options настраивает массовый сканер
type Options struct {
	// ScanID метит все возможности одного прохода
	ScanID string

	// Cooldown - пауза после rate limit перед повторной попыткой
	Cooldown time.Duration

	// Gate - шаг ожидания пока биржа возможности в кулдауне
	Gate time.Duration

	// Stagger - нарастающая задержка стартов, рассеивает начальный залп
	Stagger time.Duration

	// Depth - запрашиваемая глубина стакана
	Depth int
}

func (o *Options) withDefaults() {
	if o.Cooldown <= 0 {
		o.Cooldown = 200 * time.Millisecond
	}
	if o.Gate <= 0 {
		o.Gate = 100 * time.Millisecond
	}
	if o.Stagger <= 0 {
		o.Stagger = 10 * time.Millisecond
	}
	if o.Depth <= 0 {
		o.Depth = 1
	}
}

// SuperScanner сканирует каждую запись коллекции
type SuperScanner struct {
	clients map[string]exchange.Client
	opts    Options
	log     *utils.Logger

	colMu sync.Mutex
	col   *catalog.Collection

	mu          sync.Mutex
	rateLimited map[string]bool
}

// NewSuperScanner создаёт массовый сканер
// Клиенты должны жить дольше скана; сканер их не закрывает
func NewSuperScanner(clients []exchange.Client, col *catalog.Collection, opts Options, log *utils.Logger) *SuperScanner {
	opts.withDefaults()

	byID := make(map[string]exchange.Client, len(clients))
	for _, c := range clients {
		byID[c.ID()] = c
	}
	return &SuperScanner{
		clients:     byID,
		col:         col,
		opts:        opts,
		log:         log,
		rateLimited: make(map[string]bool),
	}
}

// Scan запускает проход по коллекции и отдаёт возможности по мере готовности
//
// Канал закрывается когда все записи обработаны. Отмена контекста
// останавливает незавершённые выборки; канал закрывается и в этом случае.
func (s *SuperScanner) Scan(ctx context.Context) <-chan *models.SpreadOpportunity {
	out := make(chan *models.SpreadOpportunity)

	s.colMu.Lock()
	symbols := make([]string, 0, len(s.col.Symbols))
	for symbol := range s.col.Symbols {
		symbols = append(symbols, symbol)
	}
	venuesOf := make(map[string][]string, len(symbols))
	for symbol, venues := range s.col.Symbols {
		venuesOf[symbol] = append([]string(nil), venues...)
	}
	s.colMu.Unlock()
	sort.Strings(symbols)

	go func() {
		defer close(out)

		var wg sync.WaitGroup
		for i, symbol := range symbols {
			wg.Add(1)
			go func(i int, symbol string, venues []string) {
				defer wg.Done()
				opp := s.scanOne(ctx, i, symbol, venues)
				if opp == nil {
					return
				}
				select {
				case out <- opp:
				case <-ctx.Done():
				}
			}(i, symbol, venuesOf[symbol])
		}
		wg.Wait()
	}()
	return out
}

// scanOne ведёт одну возможность до завершения всех её бирж
func (s *SuperScanner) scanOne(ctx context.Context, idx int, symbol string, venues []string) *models.SpreadOpportunity {
	if !sleepCtx(ctx, time.Duration(idx)*s.opts.Stagger) {
		return nil
	}

	states := make(map[string]string, len(venues))
	attempts := make(map[string]int, len(venues))
	for _, v := range venues {
		states[v] = StatePending
	}

	opp := &models.SpreadOpportunity{
		ScanID:    s.opts.ScanID,
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
	}

	truncated := false
	for !truncated {
		pending := pendingOf(venues, states)
		if len(pending) == 0 {
			break
		}

		// Гейт: ждём пока ни одна из бирж возможности не в кулдауне
		for s.anyLimited(pending) {
			if !sleepCtx(ctx, s.opts.Gate) {
				return nil
			}
		}

		for _, v := range pending {
			s.transition(states, symbol, v, StateFetching)
		}
		results := s.fetchBatch(ctx, symbol, pending)

		// Обновления лучших котировок сериализованы в этой горутине
		for _, r := range results {
			if ctx.Err() != nil {
				return nil
			}

			switch {
			case r.err == nil:
				if applyBook(opp, r.venue, r.book) {
					s.transition(states, symbol, r.venue, StateCompleted)
				} else {
					s.transition(states, symbol, r.venue, StateDropped)
					RecordDrop(r.venue, "empty_book")
				}

			case exchange.KindOf(r.err) == exchange.KindRateLimited ||
				exchange.KindOf(r.err) == exchange.KindTransient:
				if attempts[r.venue] >= 1 {
					s.transition(states, symbol, r.venue, StateDropped)
					RecordDrop(r.venue, "retries_exhausted")
					continue
				}
				attempts[r.venue]++
				s.transition(states, symbol, r.venue, StateRateLimited)
				RecordBackoff(r.venue)

				s.setLimited(r.venue, true)
				ok := sleepCtx(ctx, s.opts.Cooldown)
				s.setLimited(r.venue, false)
				if !ok {
					return nil
				}
				// Повторная диспетчеризация с этой же биржей
				s.transition(states, symbol, r.venue, StatePending)

			case exchange.KindOf(r.err) == exchange.KindUnknownMarket:
				s.transition(states, symbol, r.venue, StateDropped)
				RecordDrop(r.venue, "unknown_market")

				kept := s.removeFromCollection(symbol, r.venue)
				s.log.Warn("venue delisted market, collection entry reduced",
					utils.Exchange(r.venue), utils.Symbol(symbol),
					utils.Int("venues_left", len(kept)))
				if len(kept) < 2 {
					// Межбиржевого расхождения больше не собрать:
					// возвращаем что накопили
					truncated = true
				}

			default:
				s.transition(states, symbol, r.venue, StateDropped)
				RecordDrop(r.venue, "permanent")
				s.log.Warn("venue dropped from opportunity",
					utils.Exchange(r.venue), utils.Symbol(symbol),
					utils.String("kind", exchange.KindOf(r.err).String()), utils.Err(r.err))
			}
		}
	}

	RecordOpportunity("spread", opp.Valuable())
	return opp
}

func (s *SuperScanner) fetchBatch(ctx context.Context, symbol string, venues []string) []bookResult {
	results := make([]bookResult, len(venues))
	var wg sync.WaitGroup
	for i, v := range venues {
		wg.Add(1)
		go func(i int, venue string) {
			defer wg.Done()
			client, ok := s.clients[venue]
			if !ok {
				results[i] = bookResult{venue: venue,
					err: exchange.NewError(venue, exchange.KindConfiguration, "no client for venue", nil)}
				return
			}

			start := time.Now()
			book, err := client.FetchOrderBook(ctx, symbol, s.opts.Depth)
			RecordFetchLatency(venue, "orderbook", float64(time.Since(start).Microseconds())/1000)
			results[i] = bookResult{venue: venue, book: book, err: err}
		}(i, v)
	}
	wg.Wait()
	return results
}

// transition переводит состояние биржи; недопустимый переход - баг сканера
func (s *SuperScanner) transition(states map[string]string, symbol, venue, to string) {
	from := states[venue]
	if !CanTransition(from, to) {
		s.log.Error("invalid venue state transition",
			utils.Symbol(symbol), utils.Exchange(venue),
			utils.String("from", from), utils.String("to", to))
		return
	}
	states[venue] = to
}

func (s *SuperScanner) setLimited(venue string, limited bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limited {
		s.rateLimited[venue] = true
	} else {
		delete(s.rateLimited, venue)
	}
}

func (s *SuperScanner) anyLimited(venues []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range venues {
		if s.rateLimited[v] {
			return true
		}
	}
	return false
}

func (s *SuperScanner) removeFromCollection(symbol, venue string) []string {
	s.colMu.Lock()
	defer s.colMu.Unlock()
	return s.col.RemoveVenue(symbol, venue)
}

func pendingOf(order []string, states map[string]string) []string {
	out := make([]string, 0, len(order))
	for _, v := range order {
		if states[v] == StatePending {
			out = append(out, v)
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
