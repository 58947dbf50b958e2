package v1

import "github.com/civicpulse/incident_reporting_system/internal/models"

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:          model.ID,
		Location:    model.Location,
		Description: model.Description,
		SubmittedBy: model.SubmittedBy,
		Category:    model.Category,
		Summary:     model.Summary,
		Priority:    model.Priority,
		Status:      model.Status,
		MediaURL:    model.MediaURL,
		ProofURL:    model.ProofURL,
		CreatedAt:   model.CreatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(incidents []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(incidents))
	for i, incident := range incidents {
		responses[i] = ModelToIncidentResponse(incident)
	}
	return responses
}

// ModelToUserResponse преобразует пользователя в DTO без чувствительных полей
func ModelToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
	}
}
