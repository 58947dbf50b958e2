package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// maxDescriptionChars ограничивает размер текста, уходящего во внешний эндпоинт
	maxDescriptionChars = 4000
	// fallbackSummaryChars - длина усеченного описания при деградации классификации
	fallbackSummaryChars = 100
)

// fencePattern убирает markdown-ограждения ```json ... ``` вокруг ответа модели
var fencePattern = regexp.MustCompile("(?m)^```(?:json)?|```$")

// Classification - результат классификации свободного текста
type Classification struct {
	Category models.Category `json:"category"`
	Summary  string          `json:"summary"`
	Priority models.Priority `json:"priority"`
}

// Client - клиент внешнего эндпоинта генерации текста.
// Между вызовами состояние не хранится, один сетевой вызов на классификацию.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	logger     *logrus.Logger
}

// NewClient создает клиент классификатора с таймаутом из конфигурации
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.ClassifierTimeout,
		},
		baseURL: strings.TrimSuffix(cfg.ClassifierBaseURL, "/"),
		model:   cfg.ClassifierModel,
		apiKey:  cfg.ClassifierAPIKey,
		logger:  logger,
	}
}

// generateRequest / generateResponse - формат generateContent-эндпоинта
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// classificationPayload - ожидаемый JSON в ответе модели
type classificationPayload struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Priority string `json:"priority"`
}

// Classify классифицирует описание инцидента.
// Ответ эндпоинта недоверенный: любая ошибка эндпоинта или разбора дает
// fallback-запись и nil-ошибку. Ошибка возвращается только при транспортном
// сбое без какого-либо ответа, и даже тогда вместе с fallback-записью.
func (c *Client) Classify(ctx context.Context, description string) (Classification, error) {
	log := c.logger.WithField("component", "classifier")

	prompt := buildPrompt(truncate(description, maxDescriptionChars))

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return Fallback(description), fmt.Errorf("classifier: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Fallback(description), fmt.Errorf("classifier: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Fallback(description), fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status_code", resp.StatusCode).Warn("Classifier endpoint returned non-200, using fallback")
		return Fallback(description), nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to read classifier response, using fallback")
		return Fallback(description), nil
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		log.WithError(err).Warn("Failed to decode classifier response, using fallback")
		return Fallback(description), nil
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		log.Warn("Classifier response has no candidates, using fallback")
		return Fallback(description), nil
	}

	raw := strings.TrimSpace(gen.Candidates[0].Content.Parts[0].Text)
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))

	var payload classificationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		log.WithError(err).Warn("Classifier output is not valid JSON, using fallback")
		return Fallback(description), nil
	}
	if payload.Summary == "" {
		payload.Summary = truncate(description, fallbackSummaryChars)
	}

	return Classification{
		Category: models.ParseCategory(payload.Category),
		Summary:  payload.Summary,
		Priority: models.ParsePriority(payload.Priority),
	}, nil
}

// Fallback возвращает запись по умолчанию при деградации классификации
func Fallback(description string) Classification {
	return Classification{
		Category: models.CategoryOther,
		Summary:  truncate(description, fallbackSummaryChars),
		Priority: models.PriorityLow,
	}
}

func buildPrompt(description string) string {
	return fmt.Sprintf(`You are an incident classification agent.
Classify the following report into one of these categories:
[Accident, Fire, Theft, Medical, Traffic, Other]

Also provide a short summary in plain English.
Assign priority for the complaint among Low, Medium, and High.

Report: %q
Respond ONLY in JSON with keys: category, summary, priority.`, description)
}

// truncate обрезает строку по рунам, не ломая многобайтовые символы
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
