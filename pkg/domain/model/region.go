package model

import "fmt"

// Region is the administrative area a record is attributed to. State is empty
// when no watched state was mentioned.
type Region struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
}

// Place returns the most specific name known for the region
func (r Region) Place() string {
	if r.State != "" {
		return r.State
	}
	return r.Country
}

var summaryTemplates = map[string]string{
	"cyber_attack":      "Cyber related activity detected in %s.",
	"border_tension":    "Border tension activity reported near %s.",
	"military_activity": "Increased military presence observed in %s.",
	"civil_unrest":      "Civil unrest signals emerging in %s.",
	"terrorism":         "Terror related activity reported in %s.",
	"natural_disaster":  "Natural disaster impact reported in %s.",
}

// Summarize builds the one-line summary shown for an enriched record
func Summarize(incidentType string, region Region) string {
	place := region.Place()
	if place == "" {
		place = "an unspecified location"
	}

	tmpl, ok := summaryTemplates[incidentType]
	if !ok {
		tmpl = "General activity detected in %s."
	}
	return fmt.Sprintf(tmpl, place)
}
