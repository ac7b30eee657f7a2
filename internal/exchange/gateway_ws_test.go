package exchange

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestGatewayConnSubscribeAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverGot := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Первый кадр - подписка клиента
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		serverGot <- string(raw)

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"symbol": "BTC/USDT", "bid": 100, "ask": 101}`))

		// Держим соединение, пока клиент не закроется
		conn.ReadMessage()
	}))
	defer server.Close()

	frames := make(chan []byte, 1)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	g := newGatewayConn("testex", wsURL, defaultGatewayWSConfig(), func(raw []byte) {
		select {
		case frames <- raw:
		default:
		}
	}, testLogger(t))
	defer g.Close()

	g.Subscribe(streamSubscription{Op: "subscribe", Channel: "ticker", Symbols: []string{"BTC/USDT"}})
	if err := g.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !g.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	select {
	case sub := <-serverGot:
		if !strings.Contains(sub, `"ticker"`) {
			t.Errorf("subscription frame = %s", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive subscription")
	}

	select {
	case raw := <-frames:
		if !strings.Contains(string(raw), "BTC/USDT") {
			t.Errorf("frame = %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client did not receive ticker frame")
	}
}

func TestGatewayConnConnectAfterClose(t *testing.T) {
	g := newGatewayConn("testex", "ws://127.0.0.1:1/stream",
		defaultGatewayWSConfig(), nil, testLogger(t))

	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := g.Connect(); err == nil {
		t.Error("Connect after Close must fail")
	}
	// Повторный Close безопасен
	if err := g.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
