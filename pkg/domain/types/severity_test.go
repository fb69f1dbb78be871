package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.Severity
		wantErr bool
	}{
		{name: "low", input: "low", want: types.SeverityLow},
		{name: "upper case medium", input: "MEDIUM", want: types.SeverityMedium},
		{name: "padded high", input: " high ", want: types.SeverityHigh},
		{name: "unknown label", input: "critical", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseSeverity(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				gt.V(t, got).Equal(types.SeverityUnknown)
			} else {
				gt.NoError(t, err)
				gt.V(t, got).Equal(tt.want)
			}
		})
	}
}

func TestSeverityMax(t *testing.T) {
	gt.V(t, types.SeverityLow.Max(types.SeverityHigh)).Equal(types.SeverityHigh)
	gt.V(t, types.SeverityHigh.Max(types.SeverityMedium)).Equal(types.SeverityHigh)
	gt.V(t, types.SeverityUnknown.Max(types.SeverityLow)).Equal(types.SeverityLow)
	gt.V(t, types.SeverityUnknown.Max(types.SeverityUnknown)).Equal(types.SeverityUnknown)
}

func TestAllSeverities(t *testing.T) {
	all := types.AllSeverities()
	gt.A(t, all).Length(3)
	for i := 1; i < len(all); i++ {
		gt.B(t, all[i].Rank() > all[i-1].Rank()).True()
	}
}

func TestAlertRuleIsValid(t *testing.T) {
	gt.B(t, types.AlertRuleHighRisk.IsValid()).True()
	gt.B(t, types.AlertRuleClusterSurge.IsValid()).True()
	gt.B(t, types.AlertRule("other").IsValid()).False()
}
