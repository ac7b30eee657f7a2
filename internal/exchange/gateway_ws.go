package exchange

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"arbscan/pkg/utils"
)

// gateway_ws.go - WebSocket соединение со шлюзом
//
// Разрыв соединения не ошибка потока: gatewayConn переподключается
// с exponential backoff и повторяет подписки. Поток котировок при
// этом просто замолкает, сканер живёт на REST до восстановления.

// gatewayWSConfig - тайминги соединения и переподключения
type gatewayWSConfig struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxRetries     int // 0 - без лимита
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

func defaultGatewayWSConfig() gatewayWSConfig {
	return gatewayWSConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     10,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Состояния соединения
const (
	wsDisconnected int32 = iota
	wsConnecting
	wsConnected
	wsReconnecting
	wsClosed
)

// gatewayConn держит WebSocket со шлюзом одной биржи
//
// Подписки запоминаются и повторяются после каждого реконнекта.
// onMessage вызывается из горутины чтения и не должен блокировать.
type gatewayConn struct {
	venue string
	wsURL string
	cfg   gatewayWSConfig
	log   *utils.Logger

	onMessage func([]byte)

	connMu sync.RWMutex
	conn   *websocket.Conn

	state   atomic.Int32
	retries atomic.Int32

	subsMu sync.Mutex
	subs   []interface{}

	done chan struct{}
}

func newGatewayConn(venue, wsURL string, cfg gatewayWSConfig, onMessage func([]byte), log *utils.Logger) *gatewayConn {
	return &gatewayConn{
		venue:     venue,
		wsURL:     wsURL,
		cfg:       cfg,
		log:       log.WithExchange(venue),
		onMessage: onMessage,
		done:      make(chan struct{}),
	}
}

func (g *gatewayConn) IsConnected() bool {
	return g.state.Load() == wsConnected
}

// Subscribe запоминает подписку и отправляет её, если соединение есть
func (g *gatewayConn) Subscribe(sub interface{}) {
	g.subsMu.Lock()
	g.subs = append(g.subs, sub)
	g.subsMu.Unlock()

	g.connMu.RLock()
	conn := g.conn
	g.connMu.RUnlock()
	if conn != nil && g.IsConnected() {
		if err := conn.WriteJSON(sub); err != nil {
			g.log.Warn("subscribe failed", utils.Err(err))
		}
	}
}

// Connect устанавливает соединение и запускает чтение
func (g *gatewayConn) Connect() error {
	select {
	case <-g.done:
		return fmt.Errorf("gateway connection closed")
	default:
	}

	g.state.Store(wsConnecting)
	if err := g.dial(); err != nil {
		g.state.Store(wsDisconnected)
		return err
	}

	g.state.Store(wsConnected)
	g.retries.Store(0)
	g.log.Info("gateway stream connected", utils.String("url", g.wsURL))

	go g.readLoop()
	go g.pingLoop()
	return nil
}

func (g *gatewayConn) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: g.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, g.wsURL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}

	g.connMu.Lock()
	g.conn = conn
	g.connMu.Unlock()

	g.resubscribe(conn)
	return nil
}

// resubscribe повторяет накопленные подписки на новом соединении
func (g *gatewayConn) resubscribe(conn *websocket.Conn) {
	g.subsMu.Lock()
	subs := make([]interface{}, len(g.subs))
	copy(subs, g.subs)
	g.subsMu.Unlock()

	for _, sub := range subs {
		if err := conn.WriteJSON(sub); err != nil {
			// Подписки уйдут со следующим реконнектом
			g.log.Warn("resubscribe failed", utils.Err(err))
			return
		}
	}
	if len(subs) > 0 {
		g.log.Debug("subscriptions restored", utils.Int("count", len(subs)))
	}
}

func (g *gatewayConn) readLoop() {
	for {
		select {
		case <-g.done:
			return
		default:
		}

		g.connMu.RLock()
		conn := g.conn
		g.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			g.lost(err)
			return
		}
		if g.onMessage != nil {
			g.onMessage(raw)
		}
	}
}

func (g *gatewayConn) pingLoop() {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.connMu.RLock()
			conn := g.conn
			g.connMu.RUnlock()
			if conn == nil || !g.IsConnected() {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				g.lost(err)
				return
			}
		}
	}
}

// lost фиксирует разрыв и запускает переподключение
// Повторные вызовы с гонки чтения и ping схлопываются по state
func (g *gatewayConn) lost(err error) {
	select {
	case <-g.done:
		return
	default:
	}
	if !g.state.CompareAndSwap(wsConnected, wsReconnecting) {
		return
	}

	g.connMu.Lock()
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	g.connMu.Unlock()

	g.log.Warn("gateway stream lost", utils.Err(err))
	go g.reconnectLoop()
}

func (g *gatewayConn) reconnectLoop() {
	delay := g.cfg.InitialDelay

	for {
		attempt := int(g.retries.Add(1))
		if g.cfg.MaxRetries > 0 && attempt > g.cfg.MaxRetries {
			g.log.Error("gateway stream gave up",
				utils.Int("max_retries", g.cfg.MaxRetries))
			g.state.Store(wsDisconnected)
			return
		}

		g.log.Info("gateway stream reconnecting",
			utils.String("delay", delay.String()), utils.Attempt(attempt))

		select {
		case <-g.done:
			return
		case <-time.After(delay):
		}

		if err := g.dial(); err != nil {
			g.log.Warn("gateway reconnect failed", utils.Err(err))
			delay *= 2
			if delay > g.cfg.MaxDelay {
				delay = g.cfg.MaxDelay
			}
			continue
		}

		g.state.Store(wsConnected)
		g.retries.Store(0)
		g.log.Info("gateway stream reconnected")

		go g.readLoop()
		go g.pingLoop()
		return
	}
}

// Close останавливает соединение и все попытки переподключения
func (g *gatewayConn) Close() error {
	select {
	case <-g.done:
		return nil
	default:
		close(g.done)
	}
	g.state.Store(wsClosed)

	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		return err
	}
	return nil
}
