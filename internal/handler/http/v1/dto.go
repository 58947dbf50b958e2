package v1

import (
	"time"

	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/civicpulse/incident_reporting_system/internal/service"
)

// SubmitReportRequest DTO подачи обращения
// @Description DTO подачи обращения
type SubmitReportRequest struct {
	Location    string `json:"location" form:"location" validate:"required"`
	Description string `json:"description" form:"description" validate:"required"`
	Type        string `json:"type,omitempty" form:"type"`
}

// SubmitReportResponse DTO ответа на подачу обращения
// @Description DTO ответа на подачу обращения
type SubmitReportResponse struct {
	Status     string            `json:"status"`
	IncidentID string            `json:"incident_id"`
	Incident   *IncidentResponse `json:"incident"`
}

// UpdateStatusRequest DTO административного обновления статуса
// @Description DTO административного обновления статуса
type UpdateStatusRequest struct {
	Status   string `json:"status" form:"status" validate:"required"`
	ProofURL string `json:"proof_url,omitempty" form:"proof_url"`
}

// RegisterRequest DTO регистрации пользователя
// @Description DTO регистрации пользователя
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=255"`
	Username        string `json:"username" validate:"required,min=3,max=64"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// LoginRequest DTO входа
// @Description DTO входа
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse DTO ответа на вход
// @Description DTO ответа на вход
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse DTO с публичными полями пользователя
// @Description DTO с публичными полями пользователя
type UserResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// IncidentResponse DTO с информацией об инциденте
// @Description DTO с информацией об инциденте
type IncidentResponse struct {
	ID          string          `json:"id"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	Category    models.Category `json:"category"`
	Summary     string          `json:"summary"`
	Priority    models.Priority `json:"priority"`
	Status      models.Status   `json:"status"`
	MediaURL    string          `json:"media_url,omitempty"`
	ProofURL    string          `json:"proof_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HistoryResponse DTO ленты последних инцидентов
// @Description DTO ленты последних инцидентов
type HistoryResponse struct {
	Incidents []*IncidentResponse `json:"incidents"`
}

// RegistrationIssuesResponse DTO с нарушениями правил регистрации
// @Description DTO с нарушениями правил регистрации
type RegistrationIssuesResponse struct {
	Status string                     `json:"status"`
	Issues service.RegistrationIssues `json:"issues"`
}

// ErrorResponse DTO ошибки
// @Description DTO ошибки
type ErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}
