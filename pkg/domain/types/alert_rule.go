package types

// AlertRule identifies which threshold rule raised an alert
type AlertRule string

const (
	AlertRuleHighRisk     AlertRule = "high_risk"
	AlertRuleClusterSurge AlertRule = "cluster_surge"
)

func (r AlertRule) IsValid() bool {
	switch r {
	case AlertRuleHighRisk, AlertRuleClusterSurge:
		return true
	default:
		return false
	}
}

func (r AlertRule) String() string {
	return string(r)
}
