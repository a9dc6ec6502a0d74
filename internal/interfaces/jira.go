package interfaces

import (
	"context"
)

// JiraClient is the narrow surface of the Jira REST API this bridge drives.
// Implementations are constructed per request from the inbound hook config;
// nothing is cached between calls.
type JiraClient interface {
	GetProject(ctx context.Context, key string) (*Project, error)
	GetIssue(ctx context.Context, idOrKey string) (*Issue, error)
	CreateIssue(ctx context.Context, projectID, summary, description string) (*CreatedIssue, error)
	TransitionIssue(ctx context.Context, issueSelf string, req TransitionRequest) error
	ListWebhooks(ctx context.Context) ([]WebhookSubscription, error)
	CreateWebhook(ctx context.Context, sub WebhookSubscription) error
	DeleteWebhook(ctx context.Context, selfURL string) error
}

// Project is a Jira project as returned by GET /rest/api/2/project/{key}.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Self string `json:"self"`
}

// Issue is a Jira issue with its open-ended field set left sparse. Apart
// from id/key/self everything lives in Fields, keyed by Jira field name,
// with null for fields the instance knows but did not populate.
type Issue struct {
	ID     string                 `json:"id"`
	Key    string                 `json:"key"`
	Self   string                 `json:"self"`
	Fields map[string]interface{} `json:"fields"`
}

// Resolved reports whether the issue carries a non-null resolution.
func (i *Issue) Resolved() bool {
	if i.Fields == nil {
		return false
	}
	return i.Fields["resolution"] != nil
}

// Comments returns the issue's comments in original order, or nil when the
// comment container is absent or empty.
func (i *Issue) Comments() []map[string]interface{} {
	container, ok := i.Fields["comment"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := container["comments"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	comments := make([]map[string]interface{}, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]interface{}); ok {
			comments = append(comments, m)
		}
	}
	return comments
}

// CreatedIssue is the correlation key Jira assigns at creation time. The
// platform stores this pair to re-address the issue in later operations.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// WebhookSubscription mirrors an entry of /rest/webhooks/1.0/webhook.
type WebhookSubscription struct {
	Name                string   `json:"name"`
	URL                 string   `json:"url"`
	Events              []string `json:"events"`
	ExcludeIssueDetails bool     `json:"excludeIssueDetails"`
	Self                string   `json:"self,omitempty"`
}

// TransitionRequest is a workflow transition with an attached comment. It is
// constructed and sent per call, never persisted.
type TransitionRequest struct {
	TransitionID string
	CommentBody  string
}
