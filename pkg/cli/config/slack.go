package config

import (
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds the upload notification settings
type Slack struct {
	WebhookURL string `masq:"secret"`
}

// Flags returns CLI flags for Slack notifications
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for upload notifications",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("MAPSDROP_SLACK_WEBHOOK_URL"),
		},
	}
}

// Notifier returns nil when no webhook is configured
func (c *Slack) Notifier(statusURL string) interfaces.Notifier {
	if c.WebhookURL == "" {
		return nil
	}
	return slack.NewNotifier(c.WebhookURL, statusURL)
}
