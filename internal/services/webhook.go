package services

import (
	"context"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"github.com/ternarybob/arbor"
)

const (
	webhookName  = "Crashlytics issue sync"
	webhookEvent = "issue_updated"
)

type webhookRegistrar struct {
	logger arbor.ILogger
}

// NewWebhookRegistrar creates a registrar enforcing the at-most-one
// subscription invariant for this integration's callback URL.
func NewWebhookRegistrar(logger arbor.ILogger) WebhookRegistrar {
	return &webhookRegistrar{logger: logger}
}

// Register lists the project's webhook subscriptions, deletes every one
// whose url equals callbackURL, then creates a fresh subscription. Deleting
// before creating guarantees at most one subscription with this URL survives
// even when a prior registration attempt partially succeeded.
//
// The sequence is not transactional; concurrent registrations against the
// same project can churn but still quiesce to a single subscription.
func (wr *webhookRegistrar) Register(ctx context.Context, client JiraClient, callbackURL string) error {
	subscriptions, err := client.ListWebhooks(ctx)
	if err != nil {
		return WrapError(err, ErrorTypeRegistration, CodeWebhookError, "failed to list webhook subscriptions")
	}

	for _, sub := range subscriptions {
		if sub.URL != callbackURL {
			continue
		}
		wr.logger.Info().
			Str("webhook", sub.Self).
			Msg("Removing duplicate webhook subscription")
		if err := client.DeleteWebhook(ctx, sub.Self); err != nil {
			return WrapError(err, ErrorTypeRegistration, CodeWebhookError, "failed to delete duplicate webhook")
		}
	}

	sub := WebhookSubscription{
		Name:                webhookName,
		URL:                 callbackURL,
		Events:              []string{webhookEvent},
		ExcludeIssueDetails: false,
	}
	if err := client.CreateWebhook(ctx, sub); err != nil {
		return WrapError(err, ErrorTypeRegistration, CodeWebhookError, "failed to create webhook subscription")
	}

	wr.logger.Info().
		Str("url", callbackURL).
		Msg("Webhook subscription registered")

	return nil
}
