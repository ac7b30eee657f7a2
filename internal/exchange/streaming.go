package exchange

import (
	"context"
	"sync"
	"time"

	"arbscan/pkg/utils"
)

// streaming.go - клиент с живыми котировками поверх REST
//
// Биржа с WebSocket эндпоинтом шлюза получает StreamingClient:
// REST остаётся источником рынков и стаканов, а котировки между
// опросами обновляются потоком. Поток опционален: при недоступном
// WebSocket клиент молча работает как чистый REST.

// liveQuoteTTL - возраст, после которого потоковая котировка
// считается устаревшей и запрос уходит в REST
const liveQuoteTTL = 10 * time.Second

// StreamingClient дополняет RESTClient потоковыми котировками
type StreamingClient struct {
	*RESTClient

	stream *TickerStream

	mu   sync.RWMutex
	live map[string]*Ticker
}

// NewStreamingClient оборачивает REST клиента потоком котировок шлюза
func NewStreamingClient(rc *RESTClient, wsURL string, log *utils.Logger) *StreamingClient {
	s := &StreamingClient{
		RESTClient: rc,
		live:       make(map[string]*Ticker),
	}
	s.stream = NewTickerStream(rc.ID(), wsURL, s.absorb, log)
	return s
}

// absorb сохраняет потоковую котировку; вызывается из горутины чтения
func (s *StreamingClient) absorb(t *Ticker) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	s.live[t.Symbol] = t
	s.mu.Unlock()
}

// fresh возвращает потоковую котировку символа, если она не устарела
func (s *StreamingClient) fresh(symbol string) *Ticker {
	s.mu.RLock()
	t, ok := s.live[symbol]
	s.mu.RUnlock()
	if !ok || time.Since(t.Timestamp) > liveQuoteTTL {
		return nil
	}
	return t
}

// LoadMarkets загружает рынки и подписывает поток на их символы
//
// Отказ WebSocket не считается ошибкой: сканер живёт на REST опросе,
// поток лишь уменьшает возраст котировок.
func (s *StreamingClient) LoadMarkets(ctx context.Context) error {
	if err := s.RESTClient.LoadMarkets(ctx); err != nil {
		return err
	}

	s.stream.Subscribe(s.Symbols()...)
	if !s.stream.IsConnected() {
		if err := s.stream.Start(); err != nil {
			s.log.Warn("ticker stream unavailable, falling back to REST",
				utils.Exchange(s.ID()), utils.Err(err))
		}
	}
	return nil
}

// FetchTicker отдаёт потоковую котировку, если она свежая, иначе REST
func (s *StreamingClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if t := s.fresh(symbol); t != nil {
		return t, nil
	}
	return s.RESTClient.FetchTicker(ctx, symbol)
}

// FetchTickers берёт REST снимок и накладывает свежие потоковые котировки
func (s *StreamingClient) FetchTickers(ctx context.Context) (map[string]*Ticker, error) {
	tickers, err := s.RESTClient.FetchTickers(ctx)
	if err != nil {
		return nil, err
	}
	for symbol := range tickers {
		if t := s.fresh(symbol); t != nil {
			tickers[symbol] = t
		}
	}
	return tickers, nil
}

// Close останавливает поток и закрывает REST клиента
func (s *StreamingClient) Close() error {
	if err := s.stream.Close(); err != nil {
		s.log.Warn("ticker stream close failed", utils.Exchange(s.ID()), utils.Err(err))
	}
	return s.RESTClient.Close()
}
