package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"github.com/go-resty/resty/v2"
)

type jiraClient struct {
	client      *resty.Client
	apiPrefix   string
	issueTypeID string
}

// NewJiraClient builds a Jira REST client rooted at the API prefix derived
// from the hook config's browse URL. Clients are request-scoped; credentials
// live only for the duration of the call.
func NewJiraClient(ref ProjectRef, username, password, issueTypeID string, timeout time.Duration) JiraClient {
	client := resty.New().
		SetBaseURL(ref.APIPrefix).
		SetBasicAuth(username, password).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &jiraClient{
		client:      client,
		apiPrefix:   ref.APIPrefix,
		issueTypeID: issueTypeID,
	}
}

func (jc *jiraClient) GetProject(ctx context.Context, key string) (*Project, error) {
	var project Project

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&project).
		Get("/rest/api/2/project/" + key)

	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, CodeBadStatus, "failed to fetch project").
			WithContext("project_key", key)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, jc.statusError(resp, CodeProjectNotFound, "project lookup").
			WithContext("project_key", key)
	}

	return &project, nil
}

func (jc *jiraClient) GetIssue(ctx context.Context, idOrKey string) (*Issue, error) {
	var issue Issue

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&issue).
		Get("/rest/api/2/issue/" + idOrKey)

	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, CodeBadStatus, "failed to fetch issue").
			WithContext("issue", idOrKey)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, jc.statusError(resp, CodeIssueNotFound, "issue lookup").
			WithContext("issue", idOrKey)
	}

	return &issue, nil
}

func (jc *jiraClient) CreateIssue(ctx context.Context, projectID, summary, description string) (*CreatedIssue, error) {
	var created CreatedIssue

	body := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"id": projectID},
			"summary":     summary,
			"description": description,
			"issuetype":   map[string]string{"id": jc.issueTypeID},
		},
	}

	resp, err := jc.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&created).
		Post("/rest/api/2/issue")

	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, CodeCreateFailed, "failed to create issue")
	}
	// Creation succeeds on 201 only; anything else means Jira did not
	// create the issue and the event must be re-driven by the caller.
	if resp.StatusCode() != http.StatusCreated {
		return nil, NewCreateError(CodeCreateFailed,
			fmt.Sprintf("Jira returned status %d creating issue", resp.StatusCode())).
			WithDetails(resp.String())
	}

	return &created, nil
}

func (jc *jiraClient) TransitionIssue(ctx context.Context, issueSelf string, req TransitionRequest) error {
	body := map[string]interface{}{
		"update": map[string]interface{}{
			"comment": []map[string]interface{}{
				{"add": map[string]string{"body": req.CommentBody}},
			},
		},
		"transition": map[string]string{"id": req.TransitionID},
	}

	resp, err := jc.client.R().
		SetContext(ctx).
		SetQueryParam("expand", "transitions.fields").
		SetBody(body).
		Post(issueSelf + "/transitions")

	if err != nil {
		return WrapError(err, ErrorTypeNetwork, CodeTransitionError, "failed to transition issue")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return jc.statusError(resp, CodeTransitionError, "issue transition")
	}

	return nil
}

func (jc *jiraClient) ListWebhooks(ctx context.Context) ([]WebhookSubscription, error) {
	var subscriptions []WebhookSubscription

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&subscriptions).
		Get("/rest/webhooks/1.0/webhook")

	if err != nil {
		return nil, WrapError(err, ErrorTypeNetwork, CodeWebhookError, "failed to list webhooks")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, jc.statusError(resp, CodeWebhookError, "webhook listing")
	}

	return subscriptions, nil
}

func (jc *jiraClient) CreateWebhook(ctx context.Context, sub WebhookSubscription) error {
	resp, err := jc.client.R().
		SetContext(ctx).
		SetBody(sub).
		Post("/rest/webhooks/1.0/webhook")

	if err != nil {
		return WrapError(err, ErrorTypeNetwork, CodeWebhookError, "failed to create webhook")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return jc.statusError(resp, CodeWebhookError, "webhook creation")
	}

	return nil
}

func (jc *jiraClient) DeleteWebhook(ctx context.Context, selfURL string) error {
	// selfURL is absolute; resty bypasses the base URL for absolute targets.
	resp, err := jc.client.R().
		SetContext(ctx).
		Delete(selfURL)

	if err != nil {
		return WrapError(err, ErrorTypeNetwork, CodeWebhookError, "failed to delete webhook")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return jc.statusError(resp, CodeWebhookError, "webhook deletion")
	}

	return nil
}

// statusError maps a non-2xx Jira response onto the bridge taxonomy:
// 401/403 become auth errors, 404 becomes the operation's not-found code,
// everything else a generic bad-status Jira error.
func (jc *jiraClient) statusError(resp *resty.Response, notFoundCode, operation string) *BridgeError {
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthError(CodeBadStatus,
			fmt.Sprintf("Jira rejected credentials during %s (status %d)", operation, status)).
			WithDetails(resp.String())
	case status == http.StatusNotFound:
		return NewJiraError(notFoundCode,
			fmt.Sprintf("Jira returned 404 during %s", operation)).
			WithDetails(resp.String())
	default:
		return NewJiraError(CodeBadStatus,
			fmt.Sprintf("Jira returned status %d during %s", status, operation)).
			WithDetails(resp.String())
	}
}
