package analyzer

import (
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

func TestResponseSchemas(t *testing.T) {
	for name, schema := range map[string]*gollem.Parameter{
		"classify": classifySchema(),
		"extract":  extractSchema(),
	} {
		t.Run(name, func(t *testing.T) {
			gt.NoError(t, schema.Validate())
			gt.Map(t, schema.Properties).Length(3)
			for prop, p := range schema.Properties {
				gt.B(t, p.Required).Describef("%s must be required", prop).True()
				gt.Error(t, p.ValidateValue(prop, nil))
			}
		})
	}
}
