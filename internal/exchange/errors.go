package exchange

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// errors.go - классификация ошибок биржевых API
//
// Сканер опрашивает много бирж параллельно и обязан различать:
// каким ошибкам можно retry'ить (сеть, 429), какие означают
// "у этой биржи нет такого рынка", а какие - неверная конфигурация.
// Частичный отказ одной биржи никогда не валит скан целиком.

// Kind - категория ошибки биржи
type Kind int

const (
	// KindTransient - временная ошибка (сеть, 5xx), можно повторить
	KindTransient Kind = iota

	// KindRateLimited - биржа ответила 429, нужно подождать
	KindRateLimited

	// KindNotAvailable - эндпоинт временно недоступен (maintenance, 503)
	KindNotAvailable

	// KindUnknownMarket - биржа не знает такой рынок/символ
	KindUnknownMarket

	// KindAuthRefused - неверные или отсутствующие API ключи
	KindAuthRefused

	// KindMalformed - ответ биржи не парсится или неполный
	KindMalformed

	// KindConfiguration - ошибка на нашей стороне: неизвестная биржа,
	// неверный параметр запроса
	KindConfiguration
)

// String возвращает имя категории для логов
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindNotAvailable:
		return "not_available"
	case KindUnknownMarket:
		return "unknown_market"
	case KindAuthRefused:
		return "auth_refused"
	case KindMalformed:
		return "malformed"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error представляет классифицированную ошибку от биржи
type Error struct {
	Venue   string // имя биржи
	Kind    Kind   // категория
	Code    string // код ошибки биржи, если есть
	Message string
	Err     error // оригинальная ошибка
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s/%s]: %s", e.Venue, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Venue, e.Kind, e.Message)
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable сообщает retry-пакету можно ли повторять запрос
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited || e.Kind == KindNotAvailable
}

// NewError создаёт классифицированную ошибку
func NewError(venue string, kind Kind, message string, err error) *Error {
	return &Error{Venue: venue, Kind: kind, Message: message, Err: err}
}

// ============================================================
// Проверки категорий
// ============================================================

// KindOf извлекает категорию из цепочки ошибок
// Неклассифицированные ошибки считаются transient
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsRateLimited проверяет что ошибка - превышение лимита запросов
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRateLimited
}

// IsNotAvailable проверяет что эндпоинт временно недоступен
func IsNotAvailable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotAvailable
}

// IsUnknownMarket проверяет что биржа не знает такой рынок
func IsUnknownMarket(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnknownMarket
}

// IsAuthRefused проверяет что биржа отвергла API ключи
func IsAuthRefused(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuthRefused
}

// ============================================================
// Классификация сырых ошибок
// ============================================================

// ClassifyHTTPStatus переводит HTTP статус в категорию
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthRefused
	case status == http.StatusNotFound:
		return KindUnknownMarket
	case status == http.StatusServiceUnavailable:
		return KindNotAvailable
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindConfiguration
	default:
		return KindTransient
	}
}

// Classify оборачивает сырую ошибку запроса в *Error
// Сетевые ошибки становятся transient
func Classify(venue string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Venue: venue, Kind: KindTransient, Message: netErr.Error(), Err: err}
	}

	return &Error{Venue: venue, Kind: KindTransient, Message: err.Error(), Err: err}
}
