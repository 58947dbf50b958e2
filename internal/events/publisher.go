package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/redis/go-redis/v9"
)

// payloadField - имя поля сообщения в стриме
const payloadField = "payload"

// Envelope - событие "new_incident" в канале.
// Origin - идентификатор процесса-отправителя, чтобы подписчик того же
// процесса не рассылал инцидент второй раз после прямой рассылки.
type Envelope struct {
	Origin   string           `json:"origin"`
	Incident *models.Incident `json:"incident"`
}

// Publisher - интерфейс публикации событий об инцидентах
type Publisher interface {
	Publish(ctx context.Context, incident *models.Incident) (string, error)
}

// RedisStreamPublisher - реализация Publisher поверх Redis Streams
type RedisStreamPublisher struct {
	redisClient *redis.Client
	stream      string
	origin      string
}

// NewRedisStreamPublisher создает издателя событий в заданный стрим
func NewRedisStreamPublisher(client *redis.Client, stream, origin string) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		redisClient: client,
		stream:      stream,
		origin:      origin,
	}
}

// Publish добавляет событие в стрим и блокируется до подтверждения брокера.
// Возвращает идентификатор сообщения в стриме.
func (p *RedisStreamPublisher) Publish(ctx context.Context, incident *models.Incident) (string, error) {
	payload, err := json.Marshal(Envelope{
		Origin:   p.origin,
		Incident: incident,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal incident event: %w", err)
	}

	id, err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish incident event to Redis: %w", err)
	}
	return id, nil
}
