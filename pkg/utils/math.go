package utils

import (
	"math"
)

// math.go - математические утилиты для поиска арбитража
//
// Назначение:
// Вспомогательные функции для работы с ценами и спредами.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Лог-веса рёбер графа считаются в пакете graph; здесь только то,
// что нужно более чем одному пакету.

// CalculateSpread расчитывает спред между двумя ценами в процентах.
//
// Формула:
//
//	Спред (%) = ((P_высокая - P_низкая) / P_низкая) × 100
//
// Параметры:
//   - priceHigh: более высокая цена (highest bid на одной бирже)
//   - priceLow: более низкая цена (lowest ask на другой)
//
// Возвращает:
//   - Спред в процентах (например, 1.5 означает 1.5%)
//   - Если priceLow <= 0, возвращает 0
//
// Примеры:
//   - CalculateSpread(101.0, 100.0) = 1.0 (1%)
//   - CalculateSpread(25050, 25000) = 0.2 (0.2%)
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices расчитывает спред, автоматически определяя high/low.
//
// Удобная обёртка когда неизвестно какая цена выше.
//
// Возвращает:
//   - Абсолютное значение спреда в процентах (всегда >= 0)
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	if priceA <= 0 || priceB <= 0 {
		return 0
	}
	if priceA > priceB {
		return CalculateSpread(priceA, priceB)
	}
	return CalculateSpread(priceB, priceA)
}

// CalculateNetSpread расчитывает чистый спред с учётом тейкер-комиссий.
//
// Межбиржевой арбитраж - две тейкер-сделки:
// 1. Покупка по lowest ask на бирже A
// 2. Продажа по highest bid на бирже B
//
// Формула:
//
//	Чистый спред = Спред (%) - (fee_A + fee_B) × 100
//
// Параметры:
//   - spreadPct: спред в процентах (результат CalculateSpread)
//   - feeA: комиссия тейкера на бирже покупки в долях (0.001 = 0.1%)
//   - feeB: комиссия тейкера на бирже продажи в долях
//
// Возвращает:
//   - Чистый спред в процентах после вычета комиссий
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	totalFeePct := (feeA + feeB) * 100
	return spreadPct - totalFeePct
}

// AlmostEqual сравнивает два float64 с относительной погрешностью tolerance.
//
// Для значений около нуля используется абсолютное сравнение.
func AlmostEqual(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest < tolerance {
		return diff < tolerance
	}
	return diff/largest < tolerance
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
