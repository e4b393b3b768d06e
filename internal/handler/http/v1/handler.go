package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/service"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// AlertStream отдает in_app оповещения подписчикам по websocket
type AlertStream interface {
	ServeWS(c *gin.Context)
}

type Handler struct {
	incidentService service.IncidentService
	alertService    service.AlertService
	alertStream     AlertStream
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

// NewHandler создает обработчики API. alertStream может быть nil, тогда /alerts/ws не регистрируется.
func NewHandler(incidentService service.IncidentService, alertService service.AlertService, alertStream AlertStream, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		alertService:    alertService,
		alertStream:     alertStream,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// respondError переводит доменную ошибку сервиса в HTTP ответ
func (h *Handler) respondError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		log.WithError(err).Warn("Request rejected by validation")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		log.WithError(err).Warn("Invalid status transition")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		log.WithError(err).Warn("Concurrent modification")
		c.JSON(http.StatusConflict, gin.H{"error": "incident was modified concurrently, retry"})
	case errors.Is(err, service.ErrNotFound):
		log.WithError(err).Warn("Resource not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrUnavailable):
		log.WithError(err).Error("Storage unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		log.WithError(err).Error("Unexpected service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// @Summary Ingest a new incident
// @Description Accept an incident candidate from a detector. The incident is stored with status "reported". Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body CreateIncidentRequest true "Incident candidate"
// @Param Idempotency-Key header string false "Key of the observation; a repeated key returns the stored incident"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	idempotencyKey := c.GetHeader(idempotencyKeyHeader)
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency key is too long"})
		return
	}

	model := DTOToIncidentModel(input)
	model.IdempotencyKey = idempotencyKey
	if err := h.incidentService.CreateIncident(c.Request.Context(), model); err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(model))
}

// @Summary Get a list of incidents
// @Description Get a page of incidents, newest first. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param status query string false "Status filter" Enums(reported, verified, in_progress, resolved, false_positive)
// @Param type query string false "Type filter" Enums(congestion, accident, road_blockage, hazard)
// @Param severity query string false "Severity filter" Enums(low, medium, high, critical)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	filter := models.IncidentFilter{
		Offset:   offset,
		Limit:    limit,
		Status:   models.Status(c.Query("status")),
		Type:     models.IncidentType(c.Query("type")),
		Severity: models.Severity(c.Query("severity")),
	}

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Move an incident through the verification lifecycle on behalf of an actor. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param transition body TransitionRequest true "Target status and actor"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Failure 422 {object} map[string]string "Transition not allowed"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents/{id}/transition [post]
func (h *Handler) transitionIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "transitionIncident").WithField("id", id)

	var input TransitionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := uuid.MustParse(input.ActorID)
	incident, err := h.incidentService.TransitionIncident(c.Request.Context(), id, models.Status(input.Status), actorID)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Find active incidents nearby
// @Description Find unresolved incidents within a radius of a point, nearest first. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query int false "Radius in meters (max 50000)" default(1000)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid coordinates"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents/nearby [get]
func (h *Handler) findNearby(c *gin.Context) {
	log := h.logger.WithField("method", "findNearby")

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}
	radius, err := queryInt(c, "radius", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius"})
		return
	}

	incidents, err := h.incidentService.FindNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident statistics
// @Description Count incidents by status within the configured time window. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /incidents/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	stats, err := h.incidentService.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, StatsToResponse(stats))
}

// @Summary Get a list of alerts
// @Description Get a page of dispatched alerts, newest first. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param incident_id query string false "Only alerts of this incident"
// @Success 200 {array} AlertResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Storage unavailable"
// @Router /alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	log := h.logger.WithField("method", "listAlerts")

	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	var incidentID *uuid.UUID
	if raw := c.Query("incident_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
			return
		}
		incidentID = &id
	}

	alerts, err := h.alertService.ListAlerts(c.Request.Context(), offset, limit, incidentID)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Record alert delivery
// @Description Increment the delivery counter of an alert. Called by channel providers. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Router /alerts/{id}/delivered [post]
func (h *Handler) recordDelivery(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "recordDelivery").WithField("id", id)

	alert, err := h.alertService.RecordDelivery(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
}

// @Summary Record alert read
// @Description Increment the read counter of an alert. Requires API key.
// @Tags Alerts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Router /alerts/{id}/read [post]
func (h *Handler) recordRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "recordRead").WithField("id", id)

	alert, err := h.alertService.RecordRead(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
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
