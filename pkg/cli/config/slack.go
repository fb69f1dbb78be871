package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds the alert notification settings
type Slack struct {
	botToken  string
	channelID string
	baseURL   string
	apiURL    string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token used to post alerts",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("OSNIT_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID that receives alerts",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("OSNIT_SLACK_CHANNEL_ID"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public base URL of the API, used for record links in alerts (e.g., https://osnit.example.com)",
			Category:    "Slack",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("OSNIT_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Override the Slack API URL",
			Category:    "Slack",
			Hidden:      true,
			Destination: &x.apiURL,
			Sources:     cli.EnvVars("OSNIT_SLACK_API_URL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel-id", x.channelID),
		slog.String("base-url", x.baseURL),
	)
}

// IsConfigured checks if both token and channel are set
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channelID != ""
}

// Configure returns a notifier, or nil when Slack is not configured
func (x *Slack) Configure() (interfaces.AlertNotifier, error) {
	if x.botToken == "" && x.channelID == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrMissingCredentials, "both --slack-bot-token and --slack-channel-id are required",
			goerr.V("has_token", x.botToken != ""),
			goerr.V("has_channel", x.channelID != ""))
	}

	var opts []slack.Option
	if x.baseURL != "" {
		opts = append(opts, slack.WithBaseURL(x.baseURL))
	}
	if x.apiURL != "" {
		opts = append(opts, slack.WithAPIURL(x.apiURL))
	}

	n, err := slack.New(x.botToken, x.channelID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack notifier")
	}
	return n, nil
}
