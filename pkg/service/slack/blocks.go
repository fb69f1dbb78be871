package slack

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"github.com/slack-go/slack"
)

const (
	// Slack rejects section text above 3000 characters
	maxTextBytes = 3000
	// Only this many record links are listed per message
	maxRecordLinks = 10
)

func severityEmoji(s types.Severity) string {
	switch s {
	case types.SeverityHigh:
		return ":rotating_light:"
	case types.SeverityMedium:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func ruleTitle(r types.AlertRule) string {
	switch r {
	case types.AlertRuleHighRisk:
		return "High risk record"
	case types.AlertRuleClusterSurge:
		return "Cluster surge"
	default:
		return r.String()
	}
}

func buildAlertBlocks(alert *model.Alert, baseURL string) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
		fmt.Sprintf("%s %s", severityEmoji(alert.Severity), ruleTitle(alert.Rule)), true, false))

	reason := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes(alert.Reason, maxTextBytes), false, false),
		nil, nil)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Severity*\n"+severityLabel(alert.Severity), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Records*\n%d", len(alert.RecordIDs)), false, false),
	}
	if alert.ClusterID != nil {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Cluster*\n%d", *alert.ClusterID), false, false))
	}
	detail := slack.NewSectionBlock(nil, fields, nil)

	blocks := []slack.Block{header, reason, detail}

	if refs := recordRefs(alert.RecordIDs, baseURL); refs != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, truncateToMaxBytes(refs, maxTextBytes), false, false)))
	}
	return blocks
}

func severityLabel(s types.Severity) string {
	if s == types.SeverityUnknown {
		return "unknown"
	}
	return s.String()
}

func recordRefs(ids []model.RecordID, baseURL string) string {
	if len(ids) == 0 {
		return ""
	}

	shown := ids[:min(len(ids), maxRecordLinks)]
	refs := make([]string, 0, len(shown)+1)
	for _, id := range shown {
		if baseURL != "" {
			refs = append(refs, fmt.Sprintf("<%s/api/records/%d/similar|#%d>", strings.TrimRight(baseURL, "/"), id, id))
		} else {
			refs = append(refs, fmt.Sprintf("#%d", id))
		}
	}
	if rest := len(ids) - len(shown); rest > 0 {
		refs = append(refs, fmt.Sprintf("and %d more", rest))
	}
	return strings.Join(refs, ", ")
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8 sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
