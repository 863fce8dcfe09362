/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blnkfinance/recon/config"
	"github.com/blnkfinance/recon/internal/request"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// WebhookSender delivers an event to the configured webhook.
type WebhookSender func(event string, payload interface{}) error

var webhookSender WebhookSender

// retryPolicy is the backoff used when posting webhooks.
var retryPolicy = func() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second
	return policy
}

// Webhook is the body posted to the webhook URL.
type Webhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// RegisterWebhookSender replaces the sender used by SendWebhook.
func RegisterWebhookSender(sender WebhookSender) {
	webhookSender = sender
}

// SendWebhook hands event to the registered sender, or posts it directly when none is registered.
func SendWebhook(event string, payload interface{}) error {
	if webhookSender != nil {
		return webhookSender(event, payload)
	}
	return PostWebhook(context.Background(), event, payload)
}

// PostWebhook posts event to the configured webhook URL with the configured headers.
// Network failures, 429 and 5XX answers are retried with exponential backoff; any other
// answer outside 2XX fails at once. Nothing is sent when no URL is configured.
//
// Parameters:
// - ctx context.Context: Cancels the delivery and its retries.
// - event string: The event name, e.g. auto_reconcile.completed.
// - payload interface{}: The event data.
//
// Returns:
// - error: The last delivery error.
func PostWebhook(ctx context.Context, event string, payload interface{}) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	body, err := json.Marshal(Webhook{Event: event, Payload: payload})
	if err != nil {
		return err
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.Notification.Webhook.Url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		for key, value := range conf.Notification.Webhook.Headers {
			req.Header.Set(key, value)
		}

		_, err = request.Call(req, nil)
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logrus.WithError(err).WithField("event", event).Warnf("webhook delivery failed, retrying in %s", wait)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(retryPolicy(), ctx), notify)
}

// SlackNotification sends an error message to the configured Slack webhook.
//
// Parameters:
// - err: The error to be reported via Slack.
func SlackNotification(err error) {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Error From Recon 🐞",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Error:*\n%v"
					}
				]
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Time:*\n%v"
					}
				]
			}
		]
	}`, jsonEscape(err.Error()), time.Now().Format(time.RFC822)))

	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return
	}

	payload, err := request.ToJsonReq(&data)
	if err != nil {
		logrus.Error(err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Slack.WebhookUrl, payload)
	if err != nil {
		logrus.Error(err)
		return
	}

	if _, err = request.Call(req, nil); err != nil {
		logrus.Error(err)
	}
}

// NotifyError logs systemError and reports it to Slack when a Slack webhook is configured.
// The Slack call runs in the background.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Error(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}

// jsonEscape escapes s for embedding inside a JSON string literal.
func jsonEscape(s string) string {
	escaped, _ := json.Marshal(s)
	return string(escaped[1 : len(escaped)-1])
}
