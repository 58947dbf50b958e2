package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	readBlock   = 5 * time.Second
	readCount   = 10
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// Broadcaster - контракт доставки полученного события живым дашбордам
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Subscriber читает события из стрима через consumer group и передает их
// в локальную рассылку. Работает в одной фоновой горутине весь срок жизни
// процесса; при ошибке чтения повторяет с экспоненциальной задержкой.
type Subscriber struct {
	redisClient *redis.Client
	hub         Broadcaster
	logger      *logrus.Logger
	stream      string
	group       string
	consumer    string
	origin      string
}

// NewSubscriber создает подписчика канала событий.
// origin - идентификатор собственного процесса: события, опубликованные
// этим же процессом, уже разосланы напрямую и пропускаются.
func NewSubscriber(client *redis.Client, hub Broadcaster, logger *logrus.Logger, stream, group, consumer, origin string) *Subscriber {
	return &Subscriber{
		redisClient: client,
		hub:         hub,
		logger:      logger,
		stream:      stream,
		group:       group,
		consumer:    consumer,
		origin:      origin,
	}
}

// Start создает consumer group и запускает горутину чтения.
// Горутина живет до отмены контекста и не блокирует путь обслуживания запросов.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.redisClient.XGroupCreateMkStream(ctx, s.stream, s.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"stream":   s.stream,
		"group":    s.group,
		"consumer": s.consumer,
	}).Info("Starting event channel subscriber...")

	go s.readLoop(ctx)
	return nil
}

func (s *Subscriber) readLoop(ctx context.Context) {
	backoff := baseBackoff
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping event channel subscriber.")
			return
		default:
		}

		streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Таймаут блокирующего чтения, новых сообщений нет
				continue
			}
			if errors.Is(err, context.Canceled) {
				continue
			}
			s.logger.WithError(err).Errorf("Failed to read from event stream, retrying in %v", backoff)
			select {
			case <-ctx.Done():
				// Задержка не должна пережить остановку процесса
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = baseBackoff

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				s.handleMessage(msg)
				// Ack ставится и для битых сообщений, иначе брокер будет
				// передоставлять их бесконечно
				if err := s.redisClient.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
					s.logger.WithError(err).WithField("message_id", msg.ID).Error("Failed to ack event message")
				}
			}
		}
	}
}

// handleMessage декодирует событие и передает его в рассылку.
// Ошибка декодирования логируется, сообщение считается обработанным.
func (s *Subscriber) handleMessage(msg redis.XMessage) {
	log := s.logger.WithField("message_id", msg.ID)

	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		log.Error("Event message has no payload field")
		return
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.WithError(err).Error("Failed to unmarshal incident event")
		return
	}
	if env.Incident == nil {
		log.Error("Incident event carries no incident")
		return
	}

	if env.Origin == s.origin {
		// Событие этого же процесса уже разослано прямым путем
		log.WithField("incident_id", env.Incident.ID).Debug("Skipping own event")
		return
	}

	payload, err := realtime.NewIncidentPayload(env.Incident)
	if err != nil {
		log.WithError(err).Error("Failed to encode incident payload")
		return
	}
	s.hub.Broadcast(payload)
}
