package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub хранит множество живых подключений дашбордов и рассылает им события.
// Членство меняется конкурентно с рассылкой, поэтому и множество, и каналы
// отправки защищены одним мьютексом: close(c.send) и запись в c.send
// происходят только под ним. Записи неблокирующие, сетевой ввод-вывод
// выполняют насосы клиентов, поэтому держать блокировку на время
// рассылки безопасно.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register добавляет подключение в множество рассылки
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("clients", count).Debug("Dashboard connected")
}

// Unregister убирает подключение и закрывает его канал отправки.
// Повторный вызов для того же клиента безопасен.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.WithField("clients", count).Debug("Dashboard disconnected")
}

// Broadcast отправляет payload каждому подключению.
// Клиент с переполненным буфером отключается, не мешая остальным.
// Выполняется под мьютексом, чтобы конкурентный Unregister не закрыл
// канал между выборкой клиента и записью в него.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dashboard send buffer full, dropping connection")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount возвращает число подключенных дашбордов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
