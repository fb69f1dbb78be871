package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// Notifier posts alerts to a Slack channel, one message per alert
type Notifier struct {
	api       *slack.Client
	channelID string
	baseURL   string
}

var _ interfaces.AlertNotifier = &Notifier{}

// Option is a functional option for Notifier configuration
type Option func(*notifierConfig)

type notifierConfig struct {
	apiURL  string
	baseURL string
}

// WithAPIURL points the client at another Slack API endpoint. The URL must end with "/".
func WithAPIURL(url string) Option {
	return func(c *notifierConfig) {
		c.apiURL = url
	}
}

// WithBaseURL sets the public URL of the read API, used for record links in messages
func WithBaseURL(url string) Option {
	return func(c *notifierConfig) {
		c.baseURL = url
	}
}

// New creates a Notifier with the provided bot token and channel
func New(token, channelID string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel ID is required")
	}

	var cfg notifierConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var apiOpts []slack.Option
	if cfg.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &Notifier{
		api:       slack.New(token, apiOpts...),
		channelID: channelID,
		baseURL:   cfg.baseURL,
	}, nil
}

// Notify posts every alert. All alerts are attempted; the first error is returned.
func (n *Notifier) Notify(ctx context.Context, alerts []*model.Alert) error {
	var firstErr error
	for _, alert := range alerts {
		blocks := buildAlertBlocks(alert, n.baseURL)
		fallback := fmt.Sprintf("[%s] %s", alert.Severity.String(), alert.Reason)

		_, ts, err := n.api.PostMessageContext(ctx, n.channelID,
			slack.MsgOptionBlocks(blocks...),
			slack.MsgOptionText(truncateToMaxBytes(fallback, maxTextBytes), false),
		)
		if err != nil {
			if firstErr == nil {
				firstErr = goerr.Wrap(err, "failed to post alert to Slack",
					goerr.V("alert_id", alert.ID),
					goerr.V("channel_id", n.channelID))
			}
			continue
		}

		logging.From(ctx).Debug("alert posted to Slack",
			"alert_id", alert.ID,
			"channel_id", n.channelID,
			"ts", ts)
	}
	return firstErr
}
