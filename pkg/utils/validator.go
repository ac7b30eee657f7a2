package utils

import (
	"errors"
	"fmt"
	"strings"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверка корректности символов рынков и имён валют до того,
// как они попадут в граф или в коллекции.
//
// Символ рынка имеет формат "BASE/QUOTE" с ровно одним разделителем.
// Биржи иногда отдают рынки в другом формате (например FX_BTC_JPY на
// BitFlyer) - такие рынки пропускаются без прерывания скана.

// ErrMalformedSymbol - символ не соответствует формату BASE/QUOTE
var ErrMalformedSymbol = errors.New("malformed market symbol")

// SplitSymbol разбивает символ рынка на базовую и котируемую валюты.
//
// Регистр сохраняется как есть. Пустые base или quote считаются
// некорректными ("/USDT", "BTC/").
//
// Примеры:
//   - SplitSymbol("BTC/USDT") = "BTC", "USDT", nil
//   - SplitSymbol("FX_BTC_JPY") = "", "", ErrMalformedSymbol
//   - SplitSymbol("A/B/C") = "", "", ErrMalformedSymbol
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedSymbol, symbol)
	}
	return parts[0], parts[1], nil
}

// ValidateSymbol проверяет формат символа рынка
func ValidateSymbol(symbol string) error {
	_, _, err := SplitSymbol(symbol)
	return err
}

// IsValidSymbol - bool-вариант ValidateSymbol для фильтров
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// ValidatePositive проверяет что значение строго положительно
func ValidatePositive(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, value)
	}
	return nil
}

// ValidateFee проверяет что комиссия лежит в [0, 1)
func ValidateFee(fee float64) error {
	if fee < 0 || fee >= 1 {
		return fmt.Errorf("taker fee must be in [0, 1), got %v", fee)
	}
	return nil
}
