package exchange

import (
	"strings"

	"arbscan/pkg/utils"
)

// stream.go - потоковые котировки через WebSocket шлюза
//
// REST опрос даёт снимок раз в интервал; для короткоживущих циклов
// этого мало. TickerStream держит соединение с шлюзом и отдаёт
// котировки по мере прихода. Разрывы переживает gatewayConn.

// TickerStream подписывается на поток котировок одной биржи
type TickerStream struct {
	venue  string
	conn   *gatewayConn
	log    *utils.Logger
	onTick func(*Ticker)
}

// streamSubscription - сообщение подписки шлюза
type streamSubscription struct {
	Op       string   `json:"op"` // "subscribe"
	Channel  string   `json:"channel"`
	Symbols  []string `json:"symbols,omitempty"`
}

// NewTickerStream создаёт поток котировок биржи
//
// wsURL - WebSocket эндпоинт шлюза для этой биржи
// onTick вызывается из горутины чтения; обработчик не должен блокировать
func NewTickerStream(venue, wsURL string, onTick func(*Ticker), log *utils.Logger) *TickerStream {
	s := &TickerStream{
		venue:  venue,
		log:    log.WithExchange(venue),
		onTick: onTick,
	}

	s.conn = newGatewayConn(venue, wsURL, defaultGatewayWSConfig(), s.handleMessage, log)
	return s
}

// Subscribe регистрирует символы; подписка переживает реконнект
func (s *TickerStream) Subscribe(symbols ...string) {
	s.conn.Subscribe(streamSubscription{
		Op:      "subscribe",
		Channel: "ticker",
		Symbols: symbols,
	})
}

// Start устанавливает соединение и начинает приём
func (s *TickerStream) Start() error {
	return s.conn.Connect()
}

// Close останавливает поток
func (s *TickerStream) Close() error {
	return s.conn.Close()
}

// IsConnected сообщает установлено ли соединение
func (s *TickerStream) IsConnected() bool {
	return s.conn.IsConnected()
}

// handleMessage разбирает кадр шлюза
//
// Кадры не-тикеров (pong, подтверждения подписки) игнорируются.
// Битый кадр логируется и пропускается: поток важнее одного кадра.
func (s *TickerStream) handleMessage(raw []byte) {
	// Дешёвая проверка до полного разбора
	if !strings.Contains(string(raw), `"bid"`) {
		return
	}

	var wire wireTicker
	if err := restJSON.Unmarshal(raw, &wire); err != nil {
		s.log.Warn("malformed stream frame", utils.Err(err))
		return
	}
	if wire.Symbol == "" || (wire.Bid == 0 && wire.Ask == 0) {
		return
	}

	if s.onTick != nil {
		s.onTick(wire.toTicker())
	}
}
