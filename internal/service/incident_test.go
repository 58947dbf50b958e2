package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/civicpulse/incident_reporting_system/internal/classifier"
	eventmocks "github.com/civicpulse/incident_reporting_system/internal/events/mocks"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/civicpulse/incident_reporting_system/internal/service"
	"github.com/civicpulse/incident_reporting_system/internal/service/mocks"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestIncidentService — вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (service.IncidentService, *mocks.MockIncidentRepository, *mocks.MockClassifier, *eventmocks.MockPublisher, *mocks.MockBroadcaster) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockIncidentRepository(ctrl)
	classifierMock := mocks.NewMockClassifier(ctrl)
	publisherMock := eventmocks.NewMockPublisher(ctrl)
	hubMock := mocks.NewMockBroadcaster(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	svc := service.NewIncidentService(repoMock, classifierMock, publisherMock, hubMock, logger)
	return svc, repoMock, classifierMock, publisherMock, hubMock
}

func TestSubmit_Success(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()
	input := service.SubmitInput{
		Location:    "Chennai",
		Description: "Small fire in kitchen at downtown cafe",
		SubmittedBy: "testuser",
	}

	// Ожидания
	classifierMock.EXPECT().
		Classify(ctx, input.Description).
		Return(classifier.Classification{
			Category: models.CategoryFire,
			Summary:  "Kitchen fire at a cafe",
			Priority: models.PriorityHigh,
		}, nil).
		Times(1)

	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			// Симулируем, что хранилище присвоило ID
			inc.ID = uuid.NewString()
			return nil
		}).Times(1)

	repoMock.EXPECT().InvalidateHistoryCache(ctx).Return(nil).Times(1)

	// Публикация и рассылка идут строго после записи
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return("1-0", nil).Times(1)
	hubMock.EXPECT().
		Broadcast(gomock.Any()).
		Do(func(payload []byte) {
			assert.Contains(t, string(payload), "new_incident")
			assert.Contains(t, string(payload), "Fire")
		}).Times(1)

	// Действие
	incident, err := svc.Submit(ctx, input)

	// Проверки
	require.NoError(t, err)
	assert.NotEmpty(t, incident.ID)
	assert.Equal(t, models.CategoryFire, incident.Category)
	assert.Equal(t, models.PriorityHigh, incident.Priority)
	assert.Equal(t, models.StatusPending, incident.Status)
	assert.Equal(t, "testuser", incident.SubmittedBy)
}

func TestSubmit_AssignsUniqueIDs(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()

	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Fallback("something happened"), nil).
		Times(2)
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			inc.ID = uuid.NewString()
			return nil
		}).Times(2)
	repoMock.EXPECT().InvalidateHistoryCache(ctx).Return(nil).Times(2)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return("1-0", nil).Times(2)
	hubMock.EXPECT().Broadcast(gomock.Any()).Times(2)

	// Действие
	first, err := svc.Submit(ctx, service.SubmitInput{Location: "A", Description: "something happened"})
	require.NoError(t, err)
	second, err := svc.Submit(ctx, service.SubmitInput{Location: "B", Description: "something happened"})
	require.NoError(t, err)

	// Проверки
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmit_EmptyDescription(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания: при провале валидации никаких побочных эффектов
	classifierMock.EXPECT().Classify(gomock.Any(), gomock.Any()).Times(0)
	repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
	hubMock.EXPECT().Broadcast(gomock.Any()).Times(0)

	// Действие
	incident, err := svc.Submit(ctx, service.SubmitInput{Location: "Chennai", Description: "   "})

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestSubmit_ClassifierDegraded(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()
	description := strings.Repeat("x", 150)

	// Ожидания: деградация классификации не останавливает конвейер
	classifierMock.EXPECT().
		Classify(ctx, description).
		Return(classifier.Fallback(description), fmt.Errorf("classifier: request failed")).
		Times(1)

	var persisted *models.Incident
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			inc.ID = uuid.NewString()
			persisted = inc
			return nil
		}).Times(1)
	repoMock.EXPECT().InvalidateHistoryCache(ctx).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return("1-0", nil).Times(1)
	hubMock.EXPECT().Broadcast(gomock.Any()).Times(1)

	// Действие
	_, err := svc.Submit(ctx, service.SubmitInput{Location: "Chennai", Description: description})

	// Проверки: fallback-значения вместо ошибки
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, persisted.Category)
	assert.Equal(t, description[:100], persisted.Summary)
	assert.Equal(t, models.PriorityLow, persisted.Priority)
}

func TestSubmit_StoreFailure(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()
	storeError := errors.New("store unavailable")

	// Ожидания: после провала записи ни публикации, ни рассылки
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Fallback("desc"), nil).
		Times(1)
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(storeError).Times(1)
	repoMock.EXPECT().InvalidateHistoryCache(gomock.Any()).Times(0)
	publisherMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
	hubMock.EXPECT().Broadcast(gomock.Any()).Times(0)

	// Действие
	incident, err := svc.Submit(ctx, service.SubmitInput{Location: "Chennai", Description: "desc"})

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorContains(t, err, "could not create incident")
}

func TestSubmit_PublishFailureContinues(t *testing.T) {
	// Подготовка
	svc, repoMock, classifierMock, publisherMock, hubMock := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания: сбой публикации только логируется, рассылка выполняется
	classifierMock.EXPECT().
		Classify(ctx, gomock.Any()).
		Return(classifier.Fallback("desc"), nil).
		Times(1)
	repoMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			inc.ID = uuid.NewString()
			return nil
		}).Times(1)
	repoMock.EXPECT().InvalidateHistoryCache(ctx).Return(nil).Times(1)
	publisherMock.EXPECT().Publish(ctx, gomock.Any()).Return("", errors.New("broker down")).Times(1)
	hubMock.EXPECT().Broadcast(gomock.Any()).Times(1)

	// Действие
	incident, err := svc.Submit(ctx, service.SubmitInput{Location: "Chennai", Description: "desc"})

	// Проверки: пользователь сбоя доставки не видит
	require.NoError(t, err)
	assert.NotEmpty(t, incident.ID)
}

func TestUpdateStatus_ResolveSuccess(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.NewString()
	proofURL := "/static/uploads/proofs/proof.jpg"

	// Ожидания: обновляются ровно status и proof_url
	repoMock.EXPECT().
		GetByID(ctx, incidentID).
		Return(&models.Incident{ID: incidentID, Status: models.StatusInProgress}, nil).
		Times(1)
	repoMock.EXPECT().
		UpdateStatus(ctx, incidentID, models.StatusResolved, proofURL).
		Return(nil).
		Times(1)
	repoMock.EXPECT().InvalidateHistoryCache(ctx).Return(nil).Times(1)

	// Действие
	err := svc.UpdateStatus(ctx, incidentID, "Resolved", proofURL)

	// Проверки
	require.NoError(t, err)
}

func TestUpdateStatus_ProofRequired(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания: до хранилища дело не доходит
	repoMock.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)
	repoMock.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := svc.UpdateStatus(ctx, uuid.NewString(), "Resolved", "")

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrProofRequired)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.NewString()

	// Ожидания: решенный инцидент назад не возвращается
	repoMock.EXPECT().
		GetByID(ctx, incidentID).
		Return(&models.Incident{ID: incidentID, Status: models.StatusResolved}, nil).
		Times(1)
	repoMock.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := svc.UpdateStatus(ctx, incidentID, "Pending", "")

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.NewString()

	// Ожидания
	repoMock.EXPECT().
		GetByID(ctx, incidentID).
		Return(nil, fmt.Errorf("incident with id %s: %w", incidentID, service.ErrNotFound)).
		Times(1)

	// Действие
	err := svc.UpdateStatus(ctx, incidentID, "In Progress", "")

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRecent_CacheHit(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	expected := []*models.Incident{
		{ID: uuid.NewString(), Location: "A"},
		{ID: uuid.NewString(), Location: "B"},
	}

	// Ожидания: при попадании в кеш хранилище не трогаем
	repoMock.EXPECT().GetHistoryFromCache(ctx).Return(expected, nil).Times(1)
	repoMock.EXPECT().ListRecent(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// Действие
	incidents, err := svc.Recent(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incidents)
}

func TestRecent_CacheMiss(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	expected := []*models.Incident{
		{ID: uuid.NewString(), Location: "A"},
	}

	// Ожидания: публичная лента отдает не более 10 записей
	repoMock.EXPECT().GetHistoryFromCache(ctx).Return(nil, nil).Times(1)
	repoMock.EXPECT().ListRecent(ctx, int64(10), service.IncidentFilter{}).Return(expected, nil).Times(1)
	repoMock.EXPECT().SetHistoryCache(ctx, expected).Return(nil).Times(1)

	// Действие
	incidents, err := svc.Recent(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incidents)
}

func TestReportsBy_FiltersBySubmitter(t *testing.T) {
	// Подготовка
	svc, repoMock, _, _, _ := newTestIncidentService(t)
	ctx := context.Background()
	expected := []*models.Incident{{ID: uuid.NewString(), SubmittedBy: "testuser"}}

	// Ожидания: выборка без лимита, с фильтром по автору
	repoMock.EXPECT().
		ListRecent(ctx, int64(0), service.IncidentFilter{SubmittedBy: "testuser"}).
		Return(expected, nil).
		Times(1)

	// Действие
	incidents, err := svc.ReportsBy(ctx, "testuser")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, incidents)
}
