package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbscan/internal/models"
	"arbscan/pkg/utils"
)

var hubJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON буферов: Broadcast вызывается на каждую возможность,
// аллокации на горячем пути нежелательны
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер рассылки: каждый найденный цикл и спред
// уходит всем подписчикам без polling. Медленные клиенты
// отсекаются, а не тормозят остальных.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Счетчики для lock-free чтения из handlers и тестов
	clientCount atomic.Int64
	dropped     atomic.Int64

	mu  sync.RWMutex
	log *utils.Logger
}

// NewHub создает новый Hub
func NewHub(log *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run запускает главный цикл Hub
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.clientCount.Add(1)
			h.log.Debug("websocket client connected",
				utils.Int("clients", int(h.clientCount.Load())))

		case client := <-h.unregister:
			h.removeClients([]*Client{client})

		case message := <-h.broadcast:
			// Копируем список под коротким RLock, шлём без блокировки
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Буфер клиента переполнен - клиент отстает
					toRemove = append(toRemove, client)
				}
			}
			if len(toRemove) > 0 {
				h.removeClients(toRemove)
				h.log.Warn("slow websocket clients removed",
					utils.Int("removed", len(toRemove)))
			}
		}
	}
}

// Stop завершает цикл Run
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) removeClients(clients []*Client) {
	h.mu.Lock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			h.clientCount.Add(-1)
		}
	}
	h.mu.Unlock()
}

// Broadcast сериализует и рассылает сообщение всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := hubJSON.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("broadcast marshal failed", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копия: буфер вернётся в пул
	msg := make([]byte, len(data))
	copy(msg, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msg)
}

// BroadcastRaw рассылает уже сериализованные данные
// Не блокирует: при переполнении канала сообщение отбрасывается
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastCycle рассылает найденный цикл
func (h *Hub) BroadcastCycle(opp *models.CycleOpportunity) {
	h.Broadcast(NewCycleMessage(opp))
}

// BroadcastSpread рассылает межбиржевой спред
func (h *Hub) BroadcastSpread(opp *models.SpreadOpportunity) {
	h.Broadcast(NewSpreadMessage(opp))
}

// BroadcastScanStatus рассылает состояние сканирования
func (h *Hub) BroadcastScanStatus(scanning bool, lastScan time.Time) {
	h.Broadcast(NewScanStatusMessage(scanning, lastScan))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// DroppedMessages возвращает число отброшенных из-за переполнения сообщений
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
