package v1

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/models"
	"github.com/civicpulse/incident_reporting_system/internal/realtime"
	"github.com/civicpulse/incident_reporting_system/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService service.IncidentService
	userService     service.UserService
	hub             *realtime.Hub
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
	upgrader        websocket.Upgrader
}

func NewHandler(incidentService service.IncidentService, userService service.UserService, hub *realtime.Hub, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		userService:     userService,
		hub:             hub,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
		upgrader: websocket.Upgrader{
			// Дашборд обслуживается с другого origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// @Summary Submit an incident report
// @Description Submit a free-text incident report. The report is classified, persisted and broadcast to live dashboards. Requires a session.
// @Tags Incidents
// @Accept json
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param report body SubmitReportRequest true "Incident report"
// @Success 200 {object} SubmitReportResponse
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "No session"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /submit [post]
func (h *Handler) submitReport(c *gin.Context) {
	log := h.logger.WithField("method", "submitReport")

	var input SubmitReportRequest
	mediaURL := ""
	isMultipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")

	if isMultipart {
		input.Location = c.PostForm("location")
		input.Description = c.PostForm("description")
		input.Type = c.PostForm("type")
	} else {
		if err := c.ShouldBindJSON(&input); err != nil {
			log.WithError(err).Warn("Failed to bind JSON")
			c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "invalid request body"})
			return
		}
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
		return
	}

	// Файл сохраняется только после валидации полей формы,
	// иначе отклоненная подача оставит сироту в каталоге загрузок
	if isMultipart {
		if file, err := c.FormFile("media"); err == nil {
			url, err := h.saveUpload(c, file, "")
			if err != nil {
				log.WithError(err).Error("Failed to store media upload")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
				return
			}
			mediaURL = url
		}
	}

	incident, err := h.incidentService.Submit(c.Request.Context(), service.SubmitInput{
		Location:    input.Location,
		Description: input.Description,
		SubmittedBy: c.GetString(ctxUsername),
		MediaURL:    mediaURL,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
			return
		}
		log.WithError(err).Error("Failed to submit report")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SubmitReportResponse{
		Status:     "success",
		IncidentID: incident.ID,
		Incident:   ModelToIncidentResponse(incident),
	})
}

// @Summary Recent incident history
// @Description Get the 10 most recent incidents, newest first.
// @Tags Incidents
// @Produce json
// @Success 200 {object} HistoryResponse
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /history [get]
func (h *Handler) getHistory(c *gin.Context) {
	log := h.logger.WithField("method", "getHistory")

	incidents, err := h.incidentService.Recent(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get history from service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Incidents: ModelsToIncidentResponses(incidents)})
}

// @Summary Reports of the current user
// @Description Get incidents submitted by the session owner, newest first. Requires a session.
// @Tags Incidents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} HistoryResponse
// @Failure 401 {object} ErrorResponse "No session"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /user/reports [get]
func (h *Handler) getUserReports(c *gin.Context) {
	log := h.logger.WithField("method", "getUserReports")

	incidents, err := h.incidentService.ReportsBy(c.Request.Context(), c.GetString(ctxUsername))
	if err != nil {
		log.WithError(err).Error("Failed to get user reports from service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Incidents: ModelsToIncidentResponses(incidents)})
}

// @Summary All reports (admin)
// @Description Get all incidents, newest first, optionally filtered by priority. Requires an admin session.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param priority query string false "Filter by priority (Low, Medium, High)"
// @Success 200 {object} HistoryResponse
// @Failure 401 {object} ErrorResponse "No session"
// @Failure 403 {object} ErrorResponse "Not an admin"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /admin/reports [get]
func (h *Handler) getAdminReports(c *gin.Context) {
	log := h.logger.WithField("method", "getAdminReports")

	filter := service.IncidentFilter{}
	if p := c.Query("priority"); p != "" {
		filter.Priority = models.ParsePriority(p)
	}

	incidents, err := h.incidentService.AllReports(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to get admin reports from service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Incidents: ModelsToIncidentResponses(incidents)})
}

// @Summary Update report status (admin)
// @Description Move an incident forward through Pending -> In Progress -> Resolved. Resolving requires a proof image. Requires an admin session.
// @Tags Admin
// @Accept json
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param update body UpdateStatusRequest true "Status update"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse "Missing proof or invalid transition"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /admin/reports/{id}/update [post]
func (h *Handler) updateReportStatus(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "updateReportStatus").WithField("incident_id", id)

	var input UpdateStatusRequest
	isMultipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")

	if isMultipart {
		input.Status = c.PostForm("status")
		input.ProofURL = c.PostForm("proof_url")
	} else {
		if err := c.ShouldBindJSON(&input); err != nil {
			log.WithError(err).Warn("Failed to bind JSON")
			c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "invalid request body"})
			return
		}
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
		return
	}

	// Файл доказательства сохраняется только после валидации полей формы
	if isMultipart {
		if file, err := c.FormFile("proof"); err == nil {
			url, err := h.saveUpload(c, file, "proofs")
			if err != nil {
				log.WithError(err).Error("Failed to store proof upload")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
				return
			}
			input.ProofURL = url
		}
	}

	err := h.incidentService.UpdateStatus(c.Request.Context(), id, input.Status, input.ProofURL)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	case errors.Is(err, service.ErrProofRequired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "Proof image required to resolve an incident"})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "error", Detail: "incident not found"})
	default:
		log.WithError(err).Error("Failed to update report status in service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
	}
}

// @Summary Register a new user
// @Description Register a citizen account. Policy violations are returned as a structured issues object.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Registration request"
// @Success 201 {object} map[string]string
// @Failure 400 {object} RegistrationIssuesResponse "Policy violations"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *Handler) register(c *gin.Context) {
	log := h.logger.WithField("method", "register")

	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
		return
	}

	issues, err := h.userService.Register(c.Request.Context(), service.RegisterInput{
		Name:            input.Name,
		Username:        input.Username,
		Email:           input.Email,
		Phone:           input.Phone,
		Password:        input.Password,
		ConfirmPassword: input.ConfirmPassword,
	})
	if err != nil {
		log.WithError(err).Error("Failed to register user in service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}
	if issues.HasAny() {
		c.JSON(http.StatusBadRequest, RegistrationIssuesResponse{Status: "error", Issues: issues})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

// @Summary Log in
// @Description Authenticate and receive a session token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *Handler) login(c *gin.Context) {
	log := h.logger.WithField("method", "login")

	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: err.Error()})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Status: "error", Detail: "invalid username or password"})
			return
		}
		log.WithError(err).Error("Failed to authenticate user in service")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	token, err := h.userService.IssueSession(user)
	if err != nil {
		log.WithError(err).Error("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Status: "error", Detail: "internal server error"})
		return
	}

	c.SetCookie(sessionCookie, token, int(h.cfg.SessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: ModelToUserResponse(user)})
}

// @Summary Live incident feed
// @Description Upgrade to a WebSocket that receives a new_incident event for every incident.
// @Tags Realtime
// @Router /ws [get]
func (h *Handler) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade websocket connection")
		return
	}
	h.hub.HandleConnection(conn)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// saveUpload сохраняет файл под случайным именем в каталоге загрузок
// и возвращает публичный URL. subdir может быть пустым.
func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	name := uuid.NewString() + filepath.Ext(filepath.Base(file.Filename))
	dst := filepath.Join(h.cfg.UploadDir, subdir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if subdir != "" {
		return fmt.Sprintf("/static/uploads/%s/%s", subdir, name), nil
	}
	return fmt.Sprintf("/static/uploads/%s", name), nil
}
