package analyzer

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

const (
	keywordMatchConfidence = 0.7
	keywordOtherConfidence = 0.3
)

type keywordRule struct {
	incident string
	severity types.Severity
	words    []string
}

// Rules are evaluated in order; the first match wins
var keywordRules = []keywordRule{
	{IncidentCyberAttack, types.SeverityHigh, []string{"cyber"}},
	{IncidentBorderTension, types.SeverityHigh, []string{"border", "infiltration"}},
	{IncidentMilitaryActivity, types.SeverityMedium, []string{"military", "army"}},
	{IncidentCivilUnrest, types.SeverityMedium, []string{"protest", "violence"}},
}

// Gazetteer holds place names recognized by the keyword extractor
var Gazetteer = []string{
	// Indian states and territories
	"Jammu", "Kashmir", "Punjab", "Rajasthan", "Gujarat", "Assam",
	"Arunachal Pradesh", "Nagaland", "Manipur", "Uttarakhand",
	"Himachal Pradesh", "Ladakh",
	// Neighbor countries
	"Pakistan", "China", "Bangladesh", "Nepal", "Sri Lanka",
}

// Keyword is an offline Classifier and EntityExtractor based on fixed word lists.
// It is used when no LLM is configured.
type Keyword struct{}

var (
	_ interfaces.Classifier      = &Keyword{}
	_ interfaces.EntityExtractor = &Keyword{}
)

func NewKeyword() *Keyword {
	return &Keyword{}
}

func (k *Keyword) Classify(ctx context.Context, text string) (*model.Classification, error) {
	lower := strings.ToLower(normalize(text, 0))

	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return &model.Classification{
					IncidentType: rule.incident,
					Severity:     rule.severity,
					Confidence:   keywordMatchConfidence,
				}, nil
			}
		}
	}

	return &model.Classification{
		IncidentType: IncidentOther,
		Severity:     types.SeverityLow,
		Confidence:   keywordOtherConfidence,
	}, nil
}

// Extract finds gazetteer places in order of appearance. Persons and organizations
// are not detected.
func (k *Keyword) Extract(ctx context.Context, text string) (*model.Entities, error) {
	lower := strings.ToLower(normalize(text, 0))

	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, place := range Gazetteer {
		if pos := strings.Index(lower, strings.ToLower(place)); pos >= 0 {
			hits = append(hits, hit{place, pos})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		return cmp.Compare(a.pos, b.pos)
	})

	var locations []string
	for _, h := range hits {
		locations = append(locations, h.name)
	}
	return &model.Entities{Locations: locations}, nil
}
