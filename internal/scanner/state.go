package scanner

// Состояние биржи внутри одной сканируемой возможности
const (
	StatePending     = "pending"      // ждёт диспетчеризации
	StateFetching    = "fetching"     // запрос стакана в полёте
	StateRateLimited = "rate_limited" // кулдаун после DDoS/таймаута
	StateCompleted   = "completed"    // валидный стакан получен
	StateDropped     = "dropped"      // постоянная ошибка, биржа исключена
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[string][]string{
	StatePending:     {StateFetching},
	StateFetching:    {StateCompleted, StateRateLimited, StateDropped},
	StateRateLimited: {StatePending},
	// completed и dropped терминальны
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true когда биржа больше не участвует в возможности
func IsTerminal(s string) bool {
	return s == StateCompleted || s == StateDropped
}
