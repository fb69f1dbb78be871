package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		incident string
		region   model.Region
		want     string
	}{
		{"state wins over country", "cyber_attack", model.Region{Country: "India", State: "Punjab"}, "Cyber related activity detected in Punjab."},
		{"country without state", "border_tension", model.Region{Country: "Pakistan"}, "Border tension activity reported near Pakistan."},
		{"military", "military_activity", model.Region{Country: "India", State: "Ladakh"}, "Increased military presence observed in Ladakh."},
		{"unrest", "civil_unrest", model.Region{Country: "India", State: "Manipur"}, "Civil unrest signals emerging in Manipur."},
		{"unknown type is general", "piracy", model.Region{Country: "India"}, "General activity detected in India."},
		{"no region", "other", model.Region{}, "General activity detected in an unspecified location."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, model.Summarize(tc.incident, tc.region)).Equal(tc.want)
		})
	}
}
