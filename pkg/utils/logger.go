package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger.go - структурированное логирование на базе zap
//
// Назначение:
// Единая точка инициализации логгера для всех компонентов сканера.
// Частичный отказ (недоступная биржа, кривой тикер) не прерывает скан,
// поэтому side-channel лог - единственное место, где видно что было отброшено.
//
// Использование:
//
//	logger := utils.InitLogger(utils.LogConfig{Level: "debug", Format: "json"})
//	logger.WithExchange("kraken").Info("Fetched tickers", utils.Int("count", n))

// LogConfig - настройки логирования
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json или text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки
}

// Logger оборачивает zap.Logger и добавляет доменные helper'ы
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// parseLevel преобразует строковый уровень в zapcore.Level
// Неизвестные значения дают info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger создаёт и настраивает логгер
//
// Формат json подходит для production (парсится коллекторами),
// text - для локальной отладки.
func InitLogger(config LogConfig) *Logger {
	level := parseLevel(config.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(config.Format) {
	case "text", "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	// Вывод: файл или stderr. При ошибке открытия файла - fallback на stderr,
	// логгер обязан быть создан в любом случае
	sink := zapcore.AddSync(os.Stderr)
	if config.Output != "" {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			sink = zapcore.AddSync(file)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if config.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// With возвращает новый логгер с добавленными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		sugar:  child.Sugar(),
	}
}

// WithComponent помечает все записи именем компонента (catalog, bellman, scanner...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithExchange помечает все записи идентификатором биржи
func (l *Logger) WithExchange(id string) *Logger {
	return l.With(Exchange(id))
}

// WithSymbol помечает все записи символом рынка (BTC/USDT)
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithScanID помечает все записи идентификатором скана
// Один скан = одно построение графа; поле позволяет фильтровать конкурентные запуски
func (l *Logger) WithScanID(id string) *Logger {
	return l.With(ScanID(id))
}

// Sugar возвращает sugared-вариант для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальный логгер
// ============================================================

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitGlobalLogger инициализирует глобальный логгер
func InitGlobalLogger(config LogConfig) *Logger {
	logger := InitLogger(config)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger возвращает глобальный логгер, создавая дефолтный при необходимости
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	if globalLogger != nil {
		defer globalMu.RUnlock()
		return globalLogger
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - короткий алиас для GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

// Debug логирует через глобальный логгер
func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }

// Info логирует через глобальный логгер
func Info(msg string, fields ...zap.Field) { GetGlobalLogger().Info(msg, fields...) }

// Warn логирует через глобальный логгер
func Warn(msg string, fields ...zap.Field) { GetGlobalLogger().Warn(msg, fields...) }

// Error логирует через глобальный логгер
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

// Fatal логирует через глобальный логгер и завершает процесс
func Fatal(msg string, fields ...zap.Field) { GetGlobalLogger().Fatal(msg, fields...) }

// Debugf - printf-style логирование через глобальный логгер
func Debugf(template string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(template, args...) }

// Infof - printf-style логирование через глобальный логгер
func Infof(template string, args ...interface{}) { GetGlobalLogger().sugar.Infof(template, args...) }

// Warnf - printf-style логирование через глобальный логгер
func Warnf(template string, args ...interface{}) { GetGlobalLogger().sugar.Warnf(template, args...) }

// Errorf - printf-style логирование через глобальный логгер
func Errorf(template string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(template, args...) }

// fieldsToInterface разворачивает zap-поля в пары key/value для sugared API
func fieldsToInterface(fields []zap.Field) []interface{} {
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		result = append(result, f.Key, f.Interface)
	}
	return result
}

// ============================================================
// Доменные конструкторы полей
// ============================================================

// Exchange - идентификатор биржи
func Exchange(id string) zap.Field { return zap.String("exchange", id) }

// Symbol - символ рынка (BASE/QUOTE)
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// Market - имя рынка на конкретной бирже
func Market(name string) zap.Field { return zap.String("market", name) }

// Currency - нода графа (валюта)
func Currency(code string) zap.Field { return zap.String("currency", code) }

// Price - цена
func Price(p float64) zap.Field { return zap.Float64("price", p) }

// Volume - объём
func Volume(v float64) zap.Field { return zap.Float64("volume", v) }

// Weight - лог-вес ребра
func Weight(w float64) zap.Field { return zap.Float64("weight", w) }

// Ratio - множитель прибыли по циклу
func Ratio(r float64) zap.Field { return zap.Float64("ratio", r) }

// CyclePath - цикл валют в виде списка нод
func CyclePath(nodes []string) zap.Field { return zap.Strings("cycle", nodes) }

// ScanID - идентификатор скана
func ScanID(id string) zap.Field { return zap.String("scan_id", id) }

// Attempt - номер попытки (retry)
func Attempt(n int) zap.Field { return zap.Int("attempt", n) }

// Latency - задержка в миллисекундах
func Latency(ms float64) zap.Field { return zap.Float64("latency_ms", ms) }

// RequestID - идентификатор HTTP запроса
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// State - состояние venue в bulk-сканере
func State(s string) zap.Field { return zap.String("state", s) }

// Component - имя компонента
func Component(name string) zap.Field { return zap.String("component", name) }

// Переэкспорт стандартных конструкторов, чтобы не тянуть zap в каждый пакет
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
)
