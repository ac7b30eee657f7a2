package exchange

import (
	"sort"
	"strings"
	"sync"

	"arbscan/pkg/utils"
)

// registry.go - реестр известных бирж
//
// Дескрипторы встроенных бирж покрывают типовой набор; нестандартная
// биржа добавляется через Register без изменения кода сканера.

// builtinDescriptors - биржи, доступные из коробки
// RateLimit выставлен консервативно по публичной документации
var builtinDescriptors = []Descriptor{
	{
		ID: "binance", Name: "Binance",
		Countries: []string{"MT"},
		BaseURL:   "https://gateway.internal/binance",
		WSURL:     "wss://gateway.internal/binance/stream",
		RateLimit: 20,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true, FeatureFetchTradingFees: true},
	},
	{
		ID: "kraken", Name: "Kraken",
		Countries: []string{"US"},
		BaseURL:   "https://gateway.internal/kraken",
		RateLimit: 1,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "coinbase", Name: "Coinbase Exchange",
		Countries: []string{"US"},
		BaseURL:   "https://gateway.internal/coinbase",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchOrderBook: true},
	},
	{
		ID: "okx", Name: "OKX",
		Countries: []string{"SC"},
		BaseURL:   "https://gateway.internal/okx",
		WSURL:     "wss://gateway.internal/okx/stream",
		RateLimit: 20,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "bybit", Name: "Bybit",
		Countries: []string{"VG"},
		BaseURL:   "https://gateway.internal/bybit",
		WSURL:     "wss://gateway.internal/bybit/stream",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "bitget", Name: "Bitget",
		Countries: []string{"SG"},
		BaseURL:   "https://gateway.internal/bitget",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "gate", Name: "Gate.io",
		Countries: []string{"KY"},
		BaseURL:   "https://gateway.internal/gate",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "htx", Name: "HTX",
		Countries: []string{"SC"},
		BaseURL:   "https://gateway.internal/htx",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
	{
		ID: "bingx", Name: "BingX",
		Countries: []string{"VG"},
		BaseURL:   "https://gateway.internal/bingx",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true},
	},
	{
		ID: "bittrex", Name: "Bittrex",
		Countries: []string{"US"},
		BaseURL:   "https://gateway.internal/bittrex",
		RateLimit: 10,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	},
}

// Registry хранит дескрипторы и выдаёт клиентов по имени
type Registry struct {
	mu    sync.RWMutex
	descs map[string]Descriptor
	log   *utils.Logger
}

// NewRegistry создаёт реестр со встроенными биржами
func NewRegistry(log *utils.Logger) *Registry {
	r := &Registry{
		descs: make(map[string]Descriptor, len(builtinDescriptors)),
		log:   log,
	}
	for _, d := range builtinDescriptors {
		r.descs[d.ID] = d
	}
	return r
}

// Register добавляет или заменяет дескриптор биржи
func (r *Registry) Register(desc Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[strings.ToLower(desc.ID)] = desc
}

// IsSupported проверяет, известна ли биржа реестру
func (r *Registry) IsSupported(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descs[strings.ToLower(name)]
	return ok
}

// Names возвращает отсортированный список известных бирж
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descs))
	for id := range r.descs {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// NewClient создаёт клиента биржи по имени
//
// Неизвестное имя - ошибка конфигурации, не transient:
// retry здесь бессмысленен
func (r *Registry) NewClient(name string, opts ...RESTOption) (Client, error) {
	r.mu.RLock()
	desc, ok := r.descs[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, NewError(name, KindConfiguration, "unsupported exchange", nil)
	}

	rc := NewRESTClient(desc, r.log, opts...)
	if desc.WSURL != "" {
		return NewStreamingClient(rc, desc.WSURL, r.log), nil
	}
	return rc, nil
}

// NewClients создаёт клиентов для списка бирж
// Первая неизвестная биржа прерывает создание
func (r *Registry) NewClients(names []string, opts ...RESTOption) ([]Client, error) {
	clients := make([]Client, 0, len(names))
	for _, name := range names {
		c, err := r.NewClient(name, opts...)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}
