package v1

import (
	"github.com/google/uuid"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

// DTOToIncidentModel преобразует запрос приема в доменную модель. DTO уже прошел валидацию.
func DTOToIncidentModel(dto CreateIncidentRequest) *models.Incident {
	incident := &models.Incident{
		Type:     models.IncidentType(dto.Type),
		Severity: models.Severity(dto.Severity),
		Location: models.Location{
			Latitude:  *dto.Latitude,
			Longitude: *dto.Longitude,
			Name:      dto.LocationName,
		},
		Description:     dto.Description,
		ConfidenceScore: dto.ConfidenceScore,
		VehicleCount:    dto.VehicleCount,
		EvidenceRef:     dto.EvidenceRef,
		ThumbnailRef:    dto.ThumbnailRef,
		CameraID:        dto.CameraID,
	}
	if dto.ObservedAt != nil {
		incident.ObservedAt = dto.ObservedAt.UTC()
	}
	if dto.ReportedBy != "" {
		if id, err := uuid.Parse(dto.ReportedBy); err == nil {
			incident.ReportedBy = &id
		}
	}
	return incident
}

func locationToResponse(l models.Location) LocationResponse {
	return LocationResponse{Latitude: l.Latitude, Longitude: l.Longitude, Name: l.Name}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:              model.ID,
		Type:            string(model.Type),
		Severity:        string(model.Severity),
		Location:        locationToResponse(model.Location),
		Description:     model.Description,
		ConfidenceScore: model.ConfidenceScore,
		VehicleCount:    model.VehicleCount,
		Status:          string(model.Status),
		EvidenceRef:     model.EvidenceRef,
		ThumbnailRef:    model.ThumbnailRef,
		CameraID:        model.CameraID,
		ReportedBy:      model.ReportedBy,
		VerifiedBy:      model.VerifiedBy,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		ResolvedAt:      model.ResolvedAt,
		ObservedAt:      model.ObservedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func StatsToResponse(stats *models.IncidentStats) StatsResponse {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	return StatsResponse{
		WindowMinutes: stats.WindowMinutes,
		Total:         stats.Total,
		ByStatus:      byStatus,
	}
}

func ModelToAlertResponse(model *models.Alert) *AlertResponse {
	resp := &AlertResponse{
		ID:               model.ID,
		IncidentID:       model.IncidentID,
		Channel:          string(model.Channel),
		Audience:         string(model.Audience),
		AreaRadiusMeters: model.AreaRadiusMeters,
		Title:            model.Title,
		Message:          model.Message,
		SentAt:           model.SentAt,
		DeliveredCount:   model.DeliveredCount,
		ReadCount:        model.ReadCount,
	}
	if model.Area != nil {
		area := locationToResponse(*model.Area)
		resp.Area = &area
	}
	return resp
}

func ModelsToAlertResponses(alerts []*models.Alert) []*AlertResponse {
	responses := make([]*AlertResponse, len(alerts))
	for i, alert := range alerts {
		responses[i] = ModelToAlertResponse(alert)
	}
	return responses
}
