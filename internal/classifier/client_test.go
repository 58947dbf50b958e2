package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient - клиент, направленный на тестовый HTTP-сервер
func newTestClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		ClassifierBaseURL: baseURL,
		ClassifierModel:   "test-model",
		ClassifierAPIKey:  "test-key",
		ClassifierTimeout: 5 * time.Second,
	}
	return NewClient(cfg, logger)
}

// generateContentBody - ответ generateContent с заданным текстом модели
func generateContentBody(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestClassify_Success(t *testing.T) {
	// Подготовка: модель отвечает чистым JSON
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Write(generateContentBody(t, `{"category":"Fire","summary":"Kitchen fire at a cafe","priority":"High"}`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "Small fire in kitchen at downtown cafe")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.CategoryFire, cl.Category)
	assert.Equal(t, "Kitchen fire at a cafe", cl.Summary)
	assert.Equal(t, models.PriorityHigh, cl.Priority)
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	// Подготовка: модель оборачивает JSON в markdown-ограждения
	fenced := "```json\n{\"category\":\"Theft\",\"summary\":\"Bike stolen\",\"priority\":\"Medium\"}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateContentBody(t, fenced))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "My bike was stolen from the station")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTheft, cl.Category)
	assert.Equal(t, "Bike stolen", cl.Summary)
	assert.Equal(t, models.PriorityMedium, cl.Priority)
}

func TestClassify_UnknownValuesFallBack(t *testing.T) {
	// Подготовка: неизвестные категория и приоритет приводятся к значениям по умолчанию
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateContentBody(t, `{"category":"Alien","summary":"Strange lights","priority":"Critical"}`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "Strange lights in the sky")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, cl.Category)
	assert.Equal(t, models.PriorityLow, cl.Priority)
}

func TestClassify_Non200UsesFallback(t *testing.T) {
	// Подготовка
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	client := newTestClient(server.URL)
	description := strings.Repeat("a", 150)

	// Действие
	cl, err := client.Classify(context.Background(), description)

	// Проверки: деградация эндпоинта ошибкой не считается
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, cl.Category)
	assert.Equal(t, description[:100], cl.Summary)
	assert.Equal(t, models.PriorityLow, cl.Priority)
}

func TestClassify_MalformedModelOutput(t *testing.T) {
	// Подготовка: модель вернула прозу вместо JSON
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateContentBody(t, "I cannot classify this report."))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "something happened")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, Fallback("something happened"), cl)
}

func TestClassify_EmptyCandidates(t *testing.T) {
	// Подготовка
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "something happened")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, Fallback("something happened"), cl)
}

func TestClassify_TransportError(t *testing.T) {
	// Подготовка: сервер закрыт до вызова
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "something happened")

	// Проверки: транспортный сбой - единственный случай с ошибкой, fallback все равно возвращается
	require.Error(t, err)
	assert.Equal(t, Fallback("something happened"), cl)
}

func TestClassify_EmptySummaryDefaultsToDescription(t *testing.T) {
	// Подготовка
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateContentBody(t, `{"category":"Medical","summary":"","priority":"High"}`))
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	// Действие
	cl, err := client.Classify(context.Background(), "Person collapsed at the market")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.CategoryMedical, cl.Category)
	assert.Equal(t, "Person collapsed at the market", cl.Summary)
	assert.Equal(t, models.PriorityHigh, cl.Priority)
}

func TestFallback_TruncatesLongDescriptions(t *testing.T) {
	// Подготовка
	description := strings.Repeat("я", 120) // многобайтовые символы

	// Действие
	cl := Fallback(description)

	// Проверки: усечение по рунам, не по байтам
	assert.Equal(t, models.CategoryOther, cl.Category)
	assert.Equal(t, 100, len([]rune(cl.Summary)))
	assert.Equal(t, models.PriorityLow, cl.Priority)
}
