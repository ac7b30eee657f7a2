package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"arbscan/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Security    SecurityConfig
	Scan        ScanConfig
	Collections CollectionsConfig
	Logging     LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - hex-кодированный мастер-ключ AES-256
	// для API ключей бирж, хранящихся в БД
	EncryptionKey string

	// APITokenHash - bcrypt-хеш токена доступа к API
	// Пустое значение отключает авторизацию (локальная разработка)
	APITokenHash string
}

// ScanConfig - настройки конвейера сканирования
type ScanConfig struct {
	// Interval - период между проходами
	Interval time.Duration

	// Venues - сканируемые биржи
	Venues []string

	// Source - валюта-источник для поиска циклов
	Source string

	// Fees учитывает тейкер-комиссии в весах рёбер
	Fees bool

	// Depth включает объёмный анализ (требует объёмы котировок)
	Depth bool

	// UniquePaths - выданные циклы не делят вершин
	UniquePaths bool

	// MinProfit - минимальный публикуемый множитель прибыли (1.001 = +0.1%)
	MinProfit float64

	// OrderBookDepth - запрашиваемая глубина стакана
	OrderBookDepth int

	// Cooldown/Gate/Stagger - тайминги массового сканера
	Cooldown time.Duration
	Gate     time.Duration
	Stagger  time.Duration

	// Strict поднимает ошибку биржи вместо её отбрасывания
	Strict bool
}

// CollectionsConfig - настройки карты доступности рынков
type CollectionsConfig struct {
	// Dir - каталог с collections.json и singularly_available_markets.json
	Dir string

	// RebuildOnStart строит коллекцию заново при запуске
	RebuildOnStart bool
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "arbscan"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
			APITokenHash:  getEnv("API_TOKEN_HASH", ""),
		},
		Scan: ScanConfig{
			Interval:       getEnvAsDuration("SCAN_INTERVAL", 30*time.Second),
			Venues:         getEnvAsSlice("SCAN_VENUES", []string{"binance", "kraken", "okx"}),
			Source:         getEnv("SCAN_SOURCE", "BTC"),
			Fees:           getEnvAsBool("SCAN_FEES", true),
			Depth:          getEnvAsBool("SCAN_DEPTH", false),
			UniquePaths:    getEnvAsBool("SCAN_UNIQUE_PATHS", true),
			MinProfit:      getEnvAsFloat("SCAN_MIN_PROFIT", 1.0),
			OrderBookDepth: getEnvAsInt("SCAN_ORDER_BOOK_DEPTH", 1),
			Cooldown:       getEnvAsDuration("SCAN_COOLDOWN", 200*time.Millisecond),
			Gate:           getEnvAsDuration("SCAN_GATE", 100*time.Millisecond),
			Stagger:        getEnvAsDuration("SCAN_STAGGER", 10*time.Millisecond),
			Strict:         getEnvAsBool("SCAN_STRICT", false),
		},
		Collections: CollectionsConfig{
			Dir:            getEnv("COLLECTIONS_DIR", "./collections"),
			RebuildOnStart: getEnvAsBool("COLLECTIONS_REBUILD", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EncryptionKeyBytes декодирует мастер-ключ; пустой ключ допустим
// пока не используются приватные эндпоинты бирж
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	if c.Security.EncryptionKey == "" {
		return nil, nil
	}
	return crypto.KeyFromHex(c.Security.EncryptionKey)
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Security.EncryptionKey != "" {
		if _, err := crypto.KeyFromHex(c.Security.EncryptionKey); err != nil {
			return fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Scan.Interval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %v", c.Scan.Interval)
	}
	if len(c.Scan.Venues) == 0 {
		return fmt.Errorf("SCAN_VENUES must list at least one exchange")
	}
	if c.Scan.Source == "" {
		return fmt.Errorf("SCAN_SOURCE currency is required")
	}
	if c.Scan.MinProfit < 1 {
		return fmt.Errorf("SCAN_MIN_PROFIT is a profit multiplier and must be >= 1, got %v", c.Scan.MinProfit)
	}
	if c.Scan.OrderBookDepth < 1 {
		return fmt.Errorf("SCAN_ORDER_BOOK_DEPTH must be at least 1, got %d", c.Scan.OrderBookDepth)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
