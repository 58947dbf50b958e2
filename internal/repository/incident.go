package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/civicpulse/incident_reporting_system/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	incidentCollection = "incidents"
	historyCacheKey    = "incidents:history"
	historyCacheTTL    = 30 * time.Second
)

type IncidentRepository struct {
	coll        *mongo.Collection
	redisClient *redis.Client
}

func NewIncidentRepository(db *mongo.Database, redisClient *redis.Client) service.IncidentRepository {
	return &IncidentRepository{
		coll:        db.Collection(incidentCollection),
		redisClient: redisClient,
	}
}

// Create записывает новый документ инцидента.
// ID и created_at присваиваются здесь, часами сервера, ровно один раз.
// InsertOne никогда не сливается с существующим документом.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	incident.ID = uuid.NewString()
	incident.CreatedAt = time.Now().UTC()
	if incident.Status == "" {
		incident.Status = models.StatusPending
	}

	if _, err := r.coll.InsertOne(ctx, incident); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его идентификатору
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	incident := &models.Incident{}
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(incident)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("incident with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// UpdateStatus частично обновляет документ: ровно поле status и,
// если передан, proof_url. Остальные поля не перезаписываются.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id string, status models.Status, proofURL string) error {
	set := bson.M{"status": status}
	if proofURL != "" {
		set["proof_url"] = proofURL
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("incident with id %s not found for update: %w", id, service.ErrNotFound)
	}
	return nil
}

// ListRecent возвращает инциденты по убыванию created_at.
// limit == 0 означает выборку без ограничения (административный список).
func (r *IncidentRepository) ListRecent(ctx context.Context, limit int64, filter service.IncidentFilter) ([]*models.Incident, error) {
	query := bson.M{}
	if filter.SubmittedBy != "" {
		query["submitted_by"] = filter.SubmittedBy
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer cursor.Close(ctx)

	incidents := make([]*models.Incident, 0)
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("failed to decode incident documents: %w", err)
	}
	return incidents, nil
}

// GetHistoryFromCache пытается получить ленту последних инцидентов из Redis
func (r *IncidentRepository) GetHistoryFromCache(ctx context.Context) ([]*models.Incident, error) {
	val, err := r.redisClient.Get(ctx, historyCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history from cache: %w", err)
	}

	incidents := make([]*models.Incident, 0)
	if err := json.Unmarshal(val, &incidents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history from cache: %w", err)
	}
	return incidents, nil
}

// SetHistoryCache сохраняет ленту последних инцидентов в Redis
func (r *IncidentRepository) SetHistoryCache(ctx context.Context, incidents []*models.Incident) error {
	val, err := json.Marshal(incidents)
	if err != nil {
		return fmt.Errorf("failed to marshal history for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, historyCacheKey, val, historyCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set history in cache: %w", err)
	}
	return nil
}

// InvalidateHistoryCache удаляет закешированную ленту
func (r *IncidentRepository) InvalidateHistoryCache(ctx context.Context) error {
	if err := r.redisClient.Del(ctx, historyCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate history cache: %w", err)
	}
	return nil
}
