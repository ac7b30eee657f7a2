package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket rate limiter для контроля частоты запросов к API бирж
//
// Алгоритм Token Bucket:
// - Ведро наполняется токенами с постоянной скоростью (rate токенов/сек)
// - Максимальная ёмкость ведра = burst (позволяет короткие всплески)
// - Каждый запрос потребляет 1 токен
// - Если токенов нет, запрос ждёт или отклоняется
//
// Сканер опрашивает десятки бирж параллельно; без локального лимита
// биржа начинает отвечать 429 и скан вырождается в sleep-loop.
//
// Использование:
//
//	limiter := NewRateLimiter(10, 20) // 10 req/sec, burst 20
//	err := limiter.Wait(ctx)          // блокирующее ожидание
//	if limiter.Allow() { ... }        // неблокирующая проверка
type RateLimiter struct {
	rate       float64   // токенов в секунду
	burst      float64   // максимальная ёмкость (burst capacity)
	tokens     float64   // текущее количество токенов
	lastRefill time.Time // время последнего пополнения
	mu         sync.Mutex
}

// NewRateLimiter создаёт новый rate limiter
//
// Параметры:
//   - rate: количество запросов в секунду (например, 10 для 10 req/sec)
//   - burst: максимальный burst (обычно 1.5-2x от rate)
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10 // дефолт 10 req/sec
	}
	if burst <= 0 {
		burst = rate * 2 // дефолт burst = 2x rate
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // начинаем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены на основе прошедшего времени
// ВАЖНО: вызывается под lock'ом
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	// Добавляем токены пропорционально прошедшему времени
	rl.tokens += elapsed * rl.rate

	// Не превышаем burst capacity
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
//
// Возвращает:
//   - nil: токен получен, можно выполнять запрос
//   - ctx.Err(): контекст отменён (timeout или cancel)
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		// Вычисляем время ожидания до следующего токена
		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		// Ждём с возможностью отмены
		select {
		case <-time.After(waitTime):
			// Повторяем попытку получить токен
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow проверяет доступность токена без блокировки
//
// Возвращает:
//   - true: токен получен, можно выполнять запрос
//   - false: нет токенов, запрос нужно отложить
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Tokens возвращает текущее количество доступных токенов
// Полезно для мониторинга и отладки
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения токенов (токенов/сек)
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst возвращает максимальную ёмкость (burst capacity)
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}

// SetRate изменяет скорость пополнения токенов
// Потокобезопасно
func (rl *RateLimiter) SetRate(rate float64) {
	if rate <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill() // фиксируем текущие токены перед изменением rate
	rl.rate = rate
}

// ============================================================
// VenueLimiters - rate limiters на биржу
// ============================================================

// VenueLimiters держит отдельный RateLimiter для каждой биржи
//
// Лимиты у бирж независимые: 429 от Kraken не повод
// притормаживать Binance. Каждый REST клиент получает
// limiter своей биржи через GetOrCreate.
type VenueLimiters struct {
	limiters     map[string]*RateLimiter
	defaultRate  float64
	defaultBurst float64
	mu           sync.RWMutex
}

// NewVenueLimiters создаёт реестр с дефолтными лимитами для новых бирж
func NewVenueLimiters(defaultRate, defaultBurst float64) *VenueLimiters {
	if defaultRate <= 0 {
		defaultRate = 10
	}
	if defaultBurst <= 0 {
		defaultBurst = defaultRate * 2
	}

	return &VenueLimiters{
		limiters:     make(map[string]*RateLimiter),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
	}
}

// Set задаёт индивидуальный лимит для биржи
// Перезаписывает существующий limiter
func (vl *VenueLimiters) Set(venue string, rate, burst float64) {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	vl.limiters[venue] = NewRateLimiter(rate, burst)
}

// GetOrCreate возвращает limiter биржи, создавая его с дефолтными
// лимитами при первом обращении
func (vl *VenueLimiters) GetOrCreate(venue string) *RateLimiter {
	vl.mu.RLock()
	limiter, ok := vl.limiters[venue]
	vl.mu.RUnlock()
	if ok {
		return limiter
	}

	vl.mu.Lock()
	defer vl.mu.Unlock()

	// Перепроверяем после захвата write-lock
	if limiter, ok = vl.limiters[venue]; ok {
		return limiter
	}

	limiter = NewRateLimiter(vl.defaultRate, vl.defaultBurst)
	vl.limiters[venue] = limiter
	return limiter
}

// Wait ожидает токен для указанной биржи
func (vl *VenueLimiters) Wait(ctx context.Context, venue string) error {
	return vl.GetOrCreate(venue).Wait(ctx)
}
