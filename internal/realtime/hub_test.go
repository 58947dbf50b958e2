package realtime

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewHub(logger)
}

// newHubClient - клиент без сетевого соединения и насосов,
// буфер отправки читается прямо из теста
func newHubClient(h *Hub, buffer int) *Client {
	return &Client{
		hub:  h,
		send: make(chan []byte, buffer),
	}
}

func TestHub_BroadcastDeliversToAllClients(t *testing.T) {
	// Подготовка
	hub := newTestHub()
	first := newHubClient(hub, 1)
	second := newHubClient(hub, 1)
	hub.Register(first)
	hub.Register(second)
	require.Equal(t, 2, hub.ClientCount())

	// Действие
	hub.Broadcast([]byte(`{"event":"new_incident"}`))

	// Проверки
	assert.Equal(t, `{"event":"new_incident"}`, string(<-first.send))
	assert.Equal(t, `{"event":"new_incident"}`, string(<-second.send))
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	// Подготовка: у медленного клиента буфер уже заполнен
	hub := newTestHub()
	slow := newHubClient(hub, 1)
	healthy := newHubClient(hub, 1)
	hub.Register(slow)
	hub.Register(healthy)
	slow.send <- []byte("stuck")

	// Действие
	hub.Broadcast([]byte("payload"))

	// Проверки: медленный клиент отключен, здоровый получил событие
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, "payload", string(<-healthy.send))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	// Подготовка
	hub := newTestHub()
	client := newHubClient(hub, 1)
	hub.Register(client)

	// Действие: повторное отключение не должно паниковать на закрытом канале
	hub.Unregister(client)
	hub.Unregister(client)

	// Проверки
	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_UnregisterDuringBroadcast(t *testing.T) {
	// Подготовка: много клиентов, отключение каждого идет одновременно с рассылкой
	hub := newTestHub()
	clients := make([]*Client, 200)
	for i := range clients {
		clients[i] = newHubClient(hub, 1)
		hub.Register(clients[i])
	}

	// Действие: закрытие каналов отправки не должно догнать идущую рассылку
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			hub.Broadcast([]byte("event"))
		}
	}()
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	// Проверки: ни паники "send on closed channel", ни потерянных клиентов
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ConcurrentRegisterAndBroadcast(t *testing.T) {
	// Подготовка
	hub := newTestHub()

	// Действие: членство меняется одновременно с рассылкой
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newHubClient(hub, 64)
			hub.Register(c)
			hub.Broadcast([]byte("event"))
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	// Проверки
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_HandleConnectionEndToEnd(t *testing.T) {
	// Подготовка: настоящий websocket через httptest
	hub := newTestHub()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.HandleConnection(conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	payload, err := NewIncidentPayload(&models.Incident{
		ID:       "abc-123",
		Location: "Chennai",
		Category: models.CategoryFire,
		Status:   models.StatusPending,
	})
	require.NoError(t, err)

	// Действие
	hub.Broadcast(payload)

	// Проверки
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(received), `"event":"new_incident"`)
	assert.Contains(t, string(received), `"abc-123"`)
}
