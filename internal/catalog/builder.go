package catalog

import (
	"context"
	"sort"
	"sync"

	"arbscan/internal/exchange"
	"arbscan/pkg/utils"
)

// ClientSource выдаёт клиентов бирж по имени
// Реализуется exchange.Registry
type ClientSource interface {
	Names() []string
	NewClient(name string, opts ...exchange.RESTOption) (exchange.Client, error)
}

// BuildOptions настраивает построение коллекции
type BuildOptions struct {
	// Venues - подмножество бирж; пусто = все известные
	Venues []string

	// Symbols ограничивает коллекцию перечисленными символами
	Symbols []string

	// Write сохраняет результат в хранилище
	Write bool

	// Strict поднимает ошибку загрузки биржи вместо её отбрасывания
	Strict bool
}

// Builder строит коллекцию опросом бирж
//
// Клиенты создаются на время построения и закрываются ровно один раз
// на любом пути выхода.
type Builder struct {
	source ClientSource
	store  *Store
	log    *utils.Logger
}

// NewBuilder создаёт построитель; store может быть nil (без персистентности)
func NewBuilder(source ClientSource, store *Store, log *utils.Logger) *Builder {
	return &Builder{source: source, store: store, log: log}
}

// BuildAll опрашивает все биржи источника
func (b *Builder) BuildAll(ctx context.Context, opts BuildOptions) (*Collection, error) {
	return b.build(ctx, nil, opts)
}

// BuildSpecific опрашивает биржи, проходящие предикаты
// Невалидные предикаты - ошибка конфигурации до единого сетевого вызова
func (b *Builder) BuildSpecific(ctx context.Context, predicates []Predicate, opts BuildOptions) (*Collection, error) {
	if err := Validate(predicates); err != nil {
		return nil, err
	}
	return b.build(ctx, predicates, opts)
}

// Cached возвращает сохранённую коллекцию; found=false когда
// хранилища нет или оно пусто
func (b *Builder) Cached() (*Collection, bool, error) {
	if b.store == nil {
		return nil, false, nil
	}
	return b.store.Load()
}

// ExchangesFor возвращает биржи символа
//
// Сначала читается сохранённая коллекция; без неё коллекция строится
// вживую с фильтром по символу. Символ вне обеих карт - ErrUnknownSymbol.
func (b *Builder) ExchangesFor(ctx context.Context, symbol string) ([]string, error) {
	if b.store != nil {
		col, found, err := b.store.Load()
		if err != nil {
			return nil, err
		}
		if found {
			if venues, ok := col.Venues(symbol); ok {
				return venues, nil
			}
			return nil, &ErrUnknownSymbol{Symbol: symbol}
		}
	}

	col, err := b.build(ctx, nil, BuildOptions{Symbols: []string{symbol}})
	if err != nil {
		return nil, err
	}
	if venues, ok := col.Venues(symbol); ok {
		return venues, nil
	}
	return nil, &ErrUnknownSymbol{Symbol: symbol}
}

func (b *Builder) build(ctx context.Context, predicates []Predicate, opts BuildOptions) (*Collection, error) {
	names := opts.Venues
	if len(names) == 0 {
		names = b.source.Names()
	}

	clients := make([]exchange.Client, 0, len(names))
	defer func() {
		for _, c := range clients {
			if err := c.Close(); err != nil {
				b.log.Warn("venue close failed", utils.Exchange(c.ID()), utils.Err(err))
			}
		}
	}()

	for _, name := range names {
		c, err := b.source.NewClient(name)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}

	// Параллельная загрузка метаданных; отказ биржи изолирован
	loadErrs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c exchange.Client) {
			defer wg.Done()
			loadErrs[i] = c.LoadMarkets(ctx)
		}(i, c)
	}
	wg.Wait()

	var filter map[string]bool
	if len(opts.Symbols) > 0 {
		filter = make(map[string]bool, len(opts.Symbols))
		for _, s := range opts.Symbols {
			filter[s] = true
		}
	}

	symbolVenues := make(map[string][]string)
	for i, c := range clients {
		if err := loadErrs[i]; err != nil {
			if opts.Strict {
				return nil, err
			}
			b.log.Warn("venue dropped from collection",
				utils.Exchange(c.ID()), utils.Err(err))
			continue
		}
		if !matchAll(c, predicates) {
			continue
		}

		symbols := append([]string(nil), c.Symbols()...)
		sort.Strings(symbols)
		for _, symbol := range symbols {
			if filter != nil && !filter[symbol] {
				continue
			}
			symbolVenues[symbol] = append(symbolVenues[symbol], c.ID())
		}
	}

	col := NewCollection()
	for symbol, venues := range symbolVenues {
		col.add(symbol, venues)
	}

	b.log.Info("collection built",
		utils.Int("venues", len(clients)),
		utils.Int("symbols", len(col.Symbols)),
		utils.Int("singletons", len(col.Singletons)))

	if opts.Write && b.store != nil {
		if err := b.store.Save(col); err != nil {
			return nil, err
		}
	}
	return col, nil
}
