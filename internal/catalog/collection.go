// Package catalog строит и хранит карту доступности рынков:
// какой символ торгуется на каких биржах.
//
// Символы с одной биржей выносятся в отдельную карту синглтонов;
// ключи двух карт не пересекаются.
package catalog

import "fmt"

// ErrUnknownSymbol - символ отсутствует в обеих картах
type ErrUnknownSymbol struct {
	Symbol string
}

func (e *ErrUnknownSymbol) Error() string {
	return fmt.Sprintf("symbol %q is not listed on any known venue", e.Symbol)
}

// Collection - карта доступности: символ → биржи
type Collection struct {
	// Symbols - символы с двумя и более биржами, порядок бирж стабилен
	Symbols map[string][]string `json:"symbols"`

	// Singletons - символы, доступные ровно на одной бирже
	Singletons map[string]string `json:"singletons"`
}

// NewCollection создаёт пустую коллекцию
func NewCollection() *Collection {
	return &Collection{
		Symbols:    make(map[string][]string),
		Singletons: make(map[string]string),
	}
}

// Venues возвращает биржи символа; синглтон - список из одной биржи
func (c *Collection) Venues(symbol string) ([]string, bool) {
	if venues, ok := c.Symbols[symbol]; ok {
		return venues, true
	}
	if venue, ok := c.Singletons[symbol]; ok {
		return []string{venue}, true
	}
	return nil, false
}

// Len возвращает общее число символов в обеих картах
func (c *Collection) Len() int {
	return len(c.Symbols) + len(c.Singletons)
}

// RemoveVenue удаляет биржу из записи символа и возвращает остаток
//
// Используется при UnknownMarket: биржа перестала листить символ.
// Запись с одной оставшейся биржей переезжает в синглтоны,
// опустевшая - удаляется совсем.
func (c *Collection) RemoveVenue(symbol, venue string) []string {
	venues, ok := c.Symbols[symbol]
	if !ok {
		if c.Singletons[symbol] == venue {
			delete(c.Singletons, symbol)
		}
		return nil
	}

	kept := make([]string, 0, len(venues))
	for _, v := range venues {
		if v != venue {
			kept = append(kept, v)
		}
	}

	switch len(kept) {
	case 0:
		delete(c.Symbols, symbol)
		return nil
	case 1:
		delete(c.Symbols, symbol)
		c.Singletons[symbol] = kept[0]
		return kept
	default:
		c.Symbols[symbol] = kept
		return kept
	}
}

// add раскладывает собранный список бирж по картам
func (c *Collection) add(symbol string, venues []string) {
	switch len(venues) {
	case 0:
	case 1:
		c.Singletons[symbol] = venues[0]
	default:
		c.Symbols[symbol] = venues
	}
}
