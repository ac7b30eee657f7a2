package websocket

import (
	"time"

	"arbscan/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeCycle - найден цикл с положительной прибылью
	MessageTypeCycle MessageType = "cycleOpportunity"

	// MessageTypeSpread - найден межбиржевой спред
	MessageTypeSpread MessageType = "spreadOpportunity"

	// MessageTypeScanStatus - состояние конвейера сканирования
	MessageTypeScanStatus MessageType = "scanStatus"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// CycleMessage - сообщение о найденном цикле
// Леджер внутри Data содержит пошаговый план сделок
type CycleMessage struct {
	BaseMessage
	Data *models.CycleOpportunity `json:"data"`
}

// SpreadMessage - сообщение о межбиржевом спреде
type SpreadMessage struct {
	BaseMessage
	Data *models.SpreadOpportunity `json:"data"`
}

// ScanStatusMessage - сообщение о состоянии сканирования
type ScanStatusMessage struct {
	BaseMessage
	Scanning bool       `json:"scanning"`
	LastScan *time.Time `json:"last_scan,omitempty"`
}

// NewCycleMessage создает сообщение о цикле
func NewCycleMessage(opp *models.CycleOpportunity) *CycleMessage {
	return &CycleMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeCycle,
			Timestamp: time.Now().UTC(),
		},
		Data: opp,
	}
}

// NewSpreadMessage создает сообщение о спреде
func NewSpreadMessage(opp *models.SpreadOpportunity) *SpreadMessage {
	return &SpreadMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpread,
			Timestamp: time.Now().UTC(),
		},
		Data: opp,
	}
}

// NewScanStatusMessage создает сообщение о состоянии сканирования
func NewScanStatusMessage(scanning bool, lastScan time.Time) *ScanStatusMessage {
	msg := &ScanStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeScanStatus,
			Timestamp: time.Now().UTC(),
		},
		Scanning: scanning,
	}
	if !lastScan.IsZero() {
		msg.LastScan = &lastScan
	}
	return msg
}
