package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/civicpulse/incident_reporting_system/internal/classifier"
	"github.com/civicpulse/incident_reporting_system/internal/events"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/civicpulse/incident_reporting_system/internal/realtime"
	"github.com/sirupsen/logrus"
)

// historyLimit - число записей для публичной ленты /history
const historyLimit = 10

// IncidentFilter - необязательные условия выборки инцидентов
type IncidentFilter struct {
	SubmittedBy string
	Priority    models.Priority
}

// IncidentRepository определяет контракт для работы с хранилищем инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, proofURL string) error
	ListRecent(ctx context.Context, limit int64, filter IncidentFilter) ([]*models.Incident, error)
	GetHistoryFromCache(ctx context.Context) ([]*models.Incident, error)
	SetHistoryCache(ctx context.Context, incidents []*models.Incident) error
	InvalidateHistoryCache(ctx context.Context) error
}

// Classifier определяет контракт клиента внешней классификации
type Classifier interface {
	Classify(ctx context.Context, description string) (classifier.Classification, error)
}

// Broadcaster определяет контракт локальной рассылки подключенным дашбордам
type Broadcaster interface {
	Broadcast(payload []byte)
}

// SubmitInput - проверенные данные формы подачи обращения
type SubmitInput struct {
	Location    string
	Description string
	SubmittedBy string
	MediaURL    string
}

// IncidentService определяет контракт бизнес-логики обращений
type IncidentService interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Incident, error)
	UpdateStatus(ctx context.Context, id, status, proofURL string) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	Recent(ctx context.Context) ([]*models.Incident, error)
	ReportsBy(ctx context.Context, username string) ([]*models.Incident, error)
	AllReports(ctx context.Context, filter IncidentFilter) ([]*models.Incident, error)
}

type incidentService struct {
	repo       IncidentRepository
	classifier Classifier
	publisher  events.Publisher
	hub        Broadcaster
	logger     *logrus.Logger
}

func NewIncidentService(repo IncidentRepository, cl Classifier, publisher events.Publisher, hub Broadcaster, logger *logrus.Logger) IncidentService {
	return &incidentService{
		repo:       repo,
		classifier: cl,
		publisher:  publisher,
		hub:        hub,
		logger:     logger,
	}
}

// Submit проводит обращение через весь конвейер:
// валидация -> классификация -> запись -> публикация -> рассылка.
// Жестко падает только запись в хранилище: без durable-записи инцидента
// не существует, и ни публикация, ни рассылка выполняться не должны.
// Сбои публикации и рассылки только логируются - запись уже сохранена,
// и дашборды доберут ее через /history.
func (s *incidentService) Submit(ctx context.Context, input SubmitInput) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "Submit",
		"user":    input.SubmittedBy,
	})

	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(input.Location) == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	cl, err := s.classifier.Classify(ctx, input.Description)
	if err != nil {
		// Деградация классификации не видна пользователю, запись уходит с fallback-значениями
		log.WithError(err).Warn("Classification degraded, proceeding with fallback values")
	}

	incident := &models.Incident{
		Location:    input.Location,
		Description: input.Description,
		SubmittedBy: input.SubmittedBy,
		Category:    cl.Category,
		Summary:     cl.Summary,
		Priority:    cl.Priority,
		Status:      models.StatusPending,
		MediaURL:    input.MediaURL,
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithField("incident_id", incident.ID)
	log.Info("Incident created successfully")

	if err := s.repo.InvalidateHistoryCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate history cache")
	}

	if _, err := s.publisher.Publish(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to publish incident event, continuing")
	}

	payload, err := realtime.NewIncidentPayload(incident)
	if err != nil {
		log.WithError(err).Error("Failed to encode incident payload, skipping broadcast")
		return incident, nil
	}
	s.hub.Broadcast(payload)

	return incident, nil
}

// UpdateStatus меняет статус инцидента администратором.
// Переходы разрешены только вперед, для Resolved обязателен proof_url.
// Обновляются ровно два поля - status и proof_url.
func (s *incidentService) UpdateStatus(ctx context.Context, id, status, proofURL string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateStatus",
		"incident_id": id,
		"status":      status,
	})

	next, ok := models.ParseStatus(status)
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if next == models.StatusResolved && strings.TrimSpace(proofURL) == "" {
		return ErrProofRequired
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to update a non-existent incident")
		return fmt.Errorf("service: incident %s not found for update: %w", id, err)
	}

	if !existing.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, id, next, proofURL); err != nil {
		log.WithError(err).Error("Failed to update incident status in repository")
		return fmt.Errorf("service: could not update incident status: %w", err)
	}

	if err := s.repo.InvalidateHistoryCache(ctx); err != nil {
		log.WithError(err).Warn("Failed to invalidate history cache")
	}

	log.Info("Incident status updated successfully")
	return nil
}

// GetIncident получает инцидент по ID
func (s *incidentService) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

// Recent возвращает 10 последних инцидентов для публичной ленты.
// Лента кешируется в Redis, допустимая при этом несвежесть оговорена контрактом хранилища.
func (s *incidentService) Recent(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "Recent",
	})

	cached, err := s.repo.GetHistoryFromCache(ctx)
	if err != nil {
		log.WithError(err).Warn("History cache lookup failed, falling back to store")
	}
	if cached != nil {
		return cached, nil
	}

	incidents, err := s.repo.ListRecent(ctx, historyLimit, IncidentFilter{})
	if err != nil {
		log.WithError(err).Error("Failed to list recent incidents from repository")
		return nil, fmt.Errorf("service: could not list recent incidents: %w", err)
	}

	if err := s.repo.SetHistoryCache(ctx, incidents); err != nil {
		log.WithError(err).Warn("Failed to cache history")
	}
	return incidents, nil
}

// ReportsBy возвращает обращения конкретного пользователя
func (s *incidentService) ReportsBy(ctx context.Context, username string) ([]*models.Incident, error) {
	incidents, err := s.repo.ListRecent(ctx, 0, IncidentFilter{SubmittedBy: username})
	if err != nil {
		return nil, fmt.Errorf("service: could not list user reports: %w", err)
	}
	return incidents, nil
}

// AllReports возвращает все обращения для административной панели,
// при необходимости отфильтрованные по приоритету
func (s *incidentService) AllReports(ctx context.Context, filter IncidentFilter) ([]*models.Incident, error) {
	incidents, err := s.repo.ListRecent(ctx, 0, filter)
	if err != nil {
		return nil, fmt.Errorf("service: could not list all reports: %w", err)
	}
	return incidents, nil
}
