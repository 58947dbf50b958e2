package realtime

import (
	"encoding/json"

	"github.com/civicpulse/incident_reporting_system/internal/models"
)

// EventNewIncident - имя события, которое получает дашборд
const EventNewIncident = "new_incident"

// Message - кадр, уходящий подключенным дашбордам
type Message struct {
	Event    string           `json:"event"`
	Incident *models.Incident `json:"incident"`
}

// NewIncidentPayload кодирует инцидент в кадр new_incident.
// Оба пути доставки (прямой после подачи и через канал событий)
// используют этот формат, дашборд дедуплицирует по incident.id.
func NewIncidentPayload(incident *models.Incident) ([]byte, error) {
	return json.Marshal(Message{
		Event:    EventNewIncident,
		Incident: incident,
	})
}
