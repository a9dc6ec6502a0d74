package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"aktis-crashsync-jira/internal/models"

	"github.com/ternarybob/arbor"
)

const (
	summarySuffix  = " [Crashlytics]"
	resolveComment = "This CR has been marked as resolved in Crashlytics"
	reopenComment  = "This CR has been reopened in Crashlytics"
)

// Verification messages returned to the platform operator.
const (
	msgVerified        = "Successfully verified Jira settings"
	msgCheckSettings   = "Verification failed - please check your username and password"
	msgCheckProjectURL = "Verification failed - please check your project URL"
	msgWebhookWarning  = "Successfully verified Jira settings, but the issue sync webhook could not be registered. " +
		"Status changes made in Jira will not be synced back to Crashlytics."
)

// clientFactory builds a request-scoped Jira client. Swapped out in tests.
type clientFactory func(ref ProjectRef, username, password, issueTypeID string, timeout time.Duration) JiraClient

type issueSyncBridge struct {
	config    *Config
	registrar WebhookRegistrar
	logger    arbor.ILogger
	newClient clientFactory
}

// NewIssueSyncBridge creates the bridge orchestrating the four service-hook
// operations. The bridge is stateless between calls: every operation
// re-derives the project reference and a fresh client from the hook config
// it is handed.
func NewIssueSyncBridge(config *Config, registrar WebhookRegistrar, logger arbor.ILogger) Bridge {
	return newIssueSyncBridge(config, registrar, logger, NewJiraClient)
}

func newIssueSyncBridge(config *Config, registrar WebhookRegistrar, logger arbor.ILogger, factory clientFactory) *issueSyncBridge {
	return &issueSyncBridge{
		config:    config,
		registrar: registrar,
		logger:    logger,
		newClient: factory,
	}
}

// resolve recomputes the project reference and builds a client for this
// call. Never cached: the hook config may change between calls.
func (b *issueSyncBridge) resolve(cfg *models.HookConfig) (ProjectRef, JiraClient, error) {
	ref, err := ParseBrowseURL(cfg.ProjectURL)
	if err != nil {
		return ProjectRef{}, nil, err
	}
	timeout := time.Duration(b.config.Server.JiraTimeout) * time.Second
	client := b.newClient(ref, cfg.Username, cfg.Password, b.config.Integration.IssueTypeID, timeout)
	return ref, client, nil
}

// CreateIssue opens a Jira issue for a crash-impact event and returns the
// tracker-assigned id/key pair. That pair is the durable correlation key;
// the caller stores it and re-addresses the issue with it later.
func (b *issueSyncBridge) CreateIssue(ctx context.Context, cfg *models.HookConfig, event *models.ImpactEvent) (*CreatedIssue, error) {
	ref, client, err := b.resolve(cfg)
	if err != nil {
		return nil, WrapError(err, ErrorTypeCreate, CodeCreateFailed, "cannot create issue from an invalid project URL")
	}

	project, err := client.GetProject(ctx, ref.ProjectKey)
	if err != nil {
		return nil, WrapError(err, ErrorTypeCreate, CodeCreateFailed, "project lookup failed before issue creation").
			WithContext("project_key", ref.ProjectKey)
	}

	summary := PlainText(event.Title) + summarySuffix
	description := buildImpactDescription(event)

	created, err := client.CreateIssue(ctx, project.ID, summary, description)
	if err != nil {
		return nil, err
	}

	b.logger.Info().
		Str("issue_key", created.Key).
		Str("project_key", ref.ProjectKey).
		Msg("Created Jira issue for crash impact event")

	return created, nil
}

// VerifyConnection checks that the supplied settings can read the project,
// and, when issue sync is enabled, tries to register the webhook. Reading
// the project is the hard requirement; webhook registration needs elevated
// privileges the operator may lack, so its failure only downgrades the
// message. Verification reports outcomes, it never escalates.
func (b *issueSyncBridge) VerifyConnection(ctx context.Context, cfg *models.HookConfig, appID string) *models.VerifyResult {
	ref, client, err := b.resolve(cfg)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Verification failed: malformed project URL")
		return &models.VerifyResult{OK: false, Message: msgCheckProjectURL}
	}

	if _, err := client.GetProject(ctx, ref.ProjectKey); err != nil {
		b.logger.Warn().Err(err).Str("project_key", ref.ProjectKey).Msg("Verification failed")
		// A missing project means the URL points at the wrong place; auth
		// failures, transport errors and unexpected statuses mean the
		// settings are wrong.
		if IsErrorCode(err, CodeProjectNotFound) {
			return &models.VerifyResult{OK: false, Message: msgCheckProjectURL}
		}
		return &models.VerifyResult{OK: false, Message: msgCheckSettings}
	}

	if cfg.SyncIssues {
		callbackURL := b.config.CallbackURL(appID)
		if err := b.registrar.Register(ctx, client, callbackURL); err != nil {
			b.logger.Warn().Err(err).Str("callback_url", callbackURL).Msg("Webhook registration failed during verification")
			return &models.VerifyResult{OK: true, Message: msgWebhookWarning}
		}
	}

	return &models.VerifyResult{OK: true, Message: msgVerified}
}

// FetchIssue returns the allow-listed snapshot of the correlated issue. Any
// failure is returned as an error for the dispatch layer to collapse into
// the platform's soft-failure sentinel.
func (b *issueSyncBridge) FetchIssue(ctx context.Context, cfg *models.HookConfig, storyID string) (models.IssueSnapshot, error) {
	_, client, err := b.resolve(cfg)
	if err != nil {
		return nil, err
	}

	issue, err := client.GetIssue(ctx, storyID)
	if err != nil {
		return nil, err
	}

	return ProjectSnapshot(issue), nil
}

// SyncResolution reconciles resolution state between Jira and the crash
// platform. The state machine runs over (Jira resolved?, platform
// resolvedAt present?): agreement on both sides is a no-op returning
// (nil, nil); a mismatch issues exactly one transition, then the issue is
// unconditionally re-fetched and its fresh snapshot returned. The
// transition response itself is never trusted as the final state.
func (b *issueSyncBridge) SyncResolution(ctx context.Context, cfg *models.HookConfig, event *models.ResolutionEvent) (models.IssueSnapshot, error) {
	_, client, err := b.resolve(cfg)
	if err != nil {
		return nil, err
	}

	issue, err := client.GetIssue(ctx, event.JiraStoryID)
	if err != nil {
		return nil, err
	}

	jiraResolved := issue.Resolved()
	platformResolved := event.ResolvedAt != nil

	if jiraResolved == platformResolved {
		b.logger.Info().
			Str("issue_key", issue.Key).
			Bool("resolved", jiraResolved).
			Msg("Resolution already in sync, nothing to do")
		return nil, nil
	}

	req := TransitionRequest{
		TransitionID: b.config.Integration.ResolveTransitionID,
		CommentBody:  resolveComment,
	}
	if jiraResolved {
		// Resolved in Jira but reopened on the platform: reopen the issue.
		req = TransitionRequest{
			TransitionID: b.config.Integration.ReopenTransitionID,
			CommentBody:  reopenComment,
		}
	}

	if err := client.TransitionIssue(ctx, issue.Self, req); err != nil {
		return nil, err
	}

	b.logger.Info().
		Str("issue_key", issue.Key).
		Str("transition_id", req.TransitionID).
		Msg("Transitioned Jira issue to match platform resolution state")

	fresh, err := client.GetIssue(ctx, event.JiraStoryID)
	if err != nil {
		return nil, err
	}

	return ProjectSnapshot(fresh), nil
}

// buildImpactDescription renders the human-readable issue description for a
// crash-impact event, embedding the crash URL as a reference link.
func buildImpactDescription(event *models.ImpactEvent) string {
	var b strings.Builder

	method := PlainText(event.Method)
	if method != "" {
		fmt.Fprintf(&b, "Crashlytics detected a new crash in %s.\n\n", method)
	} else {
		b.WriteString("Crashlytics detected a new crash.\n\n")
	}

	fmt.Fprintf(&b, "This crash has impacted at least %s, at least %s.\n\n",
		pluralize(event.ImpactedDevicesCount, "user", "users"),
		pluralize(event.CrashesCount, "time", "times"))

	fmt.Fprintf(&b, "More information: %s\n", event.URL)

	return b.String()
}

func pluralize(count uint64, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
