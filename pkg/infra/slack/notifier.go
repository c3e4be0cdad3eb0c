package slack

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/slack-go/slack"
)

type notifier struct {
	webhookURL string
	statusURL  string
}

// NewNotifier posts upload notifications to a Slack incoming webhook.
// statusURL is the externally reachable URL of the status page. Messages link
// to it when it is set.
func NewNotifier(webhookURL, statusURL string) interfaces.Notifier {
	return &notifier{
		webhookURL: webhookURL,
		statusURL:  statusURL,
	}
}

func (x *notifier) NotifyUpload(ctx context.Context, result *model.UploadResult) error {
	msg := &slack.WebhookMessage{
		Text: buildMessage(result, x.statusURL),
	}

	if err := slack.PostWebhookContext(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack webhook", goerr.V("table_id", result.Table.ID))
	}
	return nil
}

func buildMessage(result *model.UploadResult, statusURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uploaded *%s* (%d files) as table `%s`", result.Table.Name, len(result.Files), result.Table.ID)
	if statusURL != "" {
		link := statusURL + "?" + url.Values{"table_id": {result.Table.ID}}.Encode()
		fmt.Fprintf(&b, "\n<%s|Check status>", link)
	}
	return b.String()
}
