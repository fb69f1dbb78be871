package analyzer

// Incident types the classifier is allowed to answer with
const (
	IncidentCyberAttack      = "cyber_attack"
	IncidentBorderTension    = "border_tension"
	IncidentMilitaryActivity = "military_activity"
	IncidentCivilUnrest      = "civil_unrest"
	IncidentTerrorism        = "terrorism"
	IncidentNaturalDisaster  = "natural_disaster"
	IncidentOther            = "other"
)

// IncidentTypes lists every supported incident type
func IncidentTypes() []string {
	return []string{
		IncidentCyberAttack,
		IncidentBorderTension,
		IncidentMilitaryActivity,
		IncidentCivilUnrest,
		IncidentTerrorism,
		IncidentNaturalDisaster,
		IncidentOther,
	}
}

// classifyResponse is the structured output of the classification prompt
type classifyResponse struct {
	IncidentType string  `json:"incident_type"`
	Severity     string  `json:"severity"`
	Confidence   float64 `json:"confidence"`
}

// extractResponse is the structured output of the entity extraction prompt
type extractResponse struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}
