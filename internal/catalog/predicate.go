package catalog

import (
	"fmt"

	"arbscan/internal/exchange"
)

// predicate.go - типизированные фильтры бирж
//
// Предикат сравнивает именованное свойство биржи со значением.
// Допустимые операции зависят от вида свойства; несовпадение вида,
// операции или типа значения - ошибка конфигурации до старта скана.

// Op - операция сравнения предиката
type Op string

const (
	// OpEq - скалярное свойство равно значению
	OpEq Op = "eq"

	// OpMemberOf - значение входит в свойство-список
	OpMemberOf Op = "memberOf"

	// OpSubsetOf - каждый элемент значения входит в свойство-список
	OpSubsetOf Op = "subsetOf"

	// OpMapMatches - каждая пара ключ/значение совпадает со свойством-словарём
	OpMapMatches Op = "mapMatches"
)

// Predicate - условие на свойство биржи
// Negate инвертирует результат (blacklist-семантика)
type Predicate struct {
	Property string `json:"property"`
	Op       Op     `json:"op"`
	Value    any    `json:"value"`
	Negate   bool   `json:"negate,omitempty"`
}

type propKind int

const (
	kindScalar propKind = iota
	kindList
	kindMap
)

// Схема свойств биржи, доступных предикатам
var propertySchema = map[string]propKind{
	"id":         kindScalar,
	"name":       kindScalar,
	"countries":  kindList,
	"symbols":    kindList,
	"currencies": kindList,
	"has":        kindMap,
}

func configErr(format string, args ...any) error {
	return exchange.NewError("catalog", exchange.KindConfiguration, fmt.Sprintf(format, args...), nil)
}

// Validate проверяет предикаты против схемы свойств
// Любое несоответствие - ошибка конфигурации, скан не стартует
func Validate(predicates []Predicate) error {
	for _, p := range predicates {
		kind, ok := propertySchema[p.Property]
		if !ok {
			return configErr("unknown venue property %q", p.Property)
		}

		switch p.Op {
		case OpEq:
			if kind != kindScalar {
				return configErr("op %s requires a scalar property, %q is not", p.Op, p.Property)
			}
			if _, ok := p.Value.(string); !ok {
				return configErr("op %s on %q requires a string value, got %T", p.Op, p.Property, p.Value)
			}
		case OpMemberOf:
			if kind != kindList {
				return configErr("op %s requires a list property, %q is not", p.Op, p.Property)
			}
			if _, ok := p.Value.(string); !ok {
				return configErr("op %s on %q requires a string value, got %T", p.Op, p.Property, p.Value)
			}
		case OpSubsetOf:
			if kind != kindList {
				return configErr("op %s requires a list property, %q is not", p.Op, p.Property)
			}
			if _, ok := p.Value.([]string); !ok {
				return configErr("op %s on %q requires a string list value, got %T", p.Op, p.Property, p.Value)
			}
		case OpMapMatches:
			if kind != kindMap {
				return configErr("op %s requires a map property, %q is not", p.Op, p.Property)
			}
			if _, ok := p.Value.(map[string]bool); !ok {
				return configErr("op %s on %q requires a map value, got %T", p.Op, p.Property, p.Value)
			}
		default:
			return configErr("unknown predicate op %q", p.Op)
		}
	}
	return nil
}

// match применяет валидированный предикат к бирже
func (p Predicate) match(c exchange.Client) bool {
	var ok bool
	switch p.Property {
	case "id":
		ok = c.ID() == p.Value.(string)
	case "name":
		ok = c.Name() == p.Value.(string)
	case "countries":
		ok = p.matchList(c.Countries())
	case "symbols":
		ok = p.matchList(c.Symbols())
	case "currencies":
		ok = p.matchList(c.Currencies())
	case "has":
		ok = true
		for feature, want := range p.Value.(map[string]bool) {
			if c.Has(feature) != want {
				ok = false
				break
			}
		}
	}
	if p.Negate {
		return !ok
	}
	return ok
}

func (p Predicate) matchList(list []string) bool {
	switch p.Op {
	case OpMemberOf:
		return contains(list, p.Value.(string))
	case OpSubsetOf:
		for _, v := range p.Value.([]string) {
			if !contains(list, v) {
				return false
			}
		}
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// matchAll - биржа проходит когда проходит каждый предикат
func matchAll(c exchange.Client, predicates []Predicate) bool {
	for _, p := range predicates {
		if !p.match(c) {
			return false
		}
	}
	return true
}
