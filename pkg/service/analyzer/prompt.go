package analyzer

import (
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

func classifySystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an OSINT analyst. Classify the security relevance of a single news item or post.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. Pick exactly one incident_type from: ")
	sb.WriteString(strings.Join(IncidentTypes(), ", "))
	sb.WriteString(".\n")
	sb.WriteString("2. Pick severity from low, medium or high based on the potential impact on public safety.\n")
	sb.WriteString("3. Set confidence between 0.0 and 1.0 for how sure you are about the incident_type.\n")
	sb.WriteString("4. Use \"other\" with low severity when the text is not about a security incident.\n")

	return sb.String()
}

func extractSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are a named entity extractor. List the entities mentioned in the text.\n\n")
	sb.WriteString("## Instructions:\n\n")
	sb.WriteString("1. persons: names of people.\n")
	sb.WriteString("2. organizations: companies, agencies, armed forces, political groups.\n")
	sb.WriteString("3. locations: countries, states, cities, regions and geographic features, most specific first.\n")
	sb.WriteString("4. Copy names as written in the text. Return empty arrays when nothing is found.\n")

	return sb.String()
}

func classifySchema() *gollem.Parameter {
	severities := make([]string, 0, 3)
	for _, s := range types.AllSeverities() {
		severities = append(severities, s.String())
	}

	return &gollem.Parameter{
		Title:       "IncidentClassification",
		Description: "Incident label of the text",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"incident_type": {
				Type:        gollem.TypeString,
				Description: "Incident category",
				Enum:        IncidentTypes(),
				Required:    true,
			},
			"severity": {
				Type:        gollem.TypeString,
				Description: "Potential impact",
				Enum:        severities,
				Required:    true,
			},
			"confidence": {
				Type:        gollem.TypeNumber,
				Description: "Confidence of the incident type between 0.0 and 1.0",
				Required:    true,
			},
		},
	}
}

func extractSchema() *gollem.Parameter {
	names := func(desc string) *gollem.Parameter {
		return &gollem.Parameter{
			Type:        gollem.TypeArray,
			Description: desc,
			Items:       &gollem.Parameter{Type: gollem.TypeString},
			Required:    true,
		}
	}

	return &gollem.Parameter{
		Title:       "NamedEntities",
		Description: "Entities mentioned in the text",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"persons":       names("Person names"),
			"organizations": names("Organization names"),
			"locations":     names("Place names, most specific first"),
		},
	}
}
