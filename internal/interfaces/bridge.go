package interfaces

import (
	"context"

	"aktis-crashsync-jira/internal/models"
)

// Bridge is the set of operations the crash platform's service-hook
// dispatcher invokes. Each call is self-contained: the hook config arrives
// with the payload and the project reference is re-derived from it every
// time.
//
// CreateIssue surfaces typed failures; FetchIssue and SyncResolution return
// errors the dispatch layer collapses to the platform's false sentinel, and
// VerifyConnection reports rather than fails. SyncResolution returns
// (nil, nil) when both sides already agree and no transition was needed.
type Bridge interface {
	CreateIssue(ctx context.Context, cfg *models.HookConfig, event *models.ImpactEvent) (*CreatedIssue, error)
	VerifyConnection(ctx context.Context, cfg *models.HookConfig, appID string) *models.VerifyResult
	FetchIssue(ctx context.Context, cfg *models.HookConfig, storyID string) (models.IssueSnapshot, error)
	SyncResolution(ctx context.Context, cfg *models.HookConfig, event *models.ResolutionEvent) (models.IssueSnapshot, error)
}

// WebhookRegistrar ensures exactly one issue_updated subscription exists for
// this integration's callback URL, removing any duplicates first.
type WebhookRegistrar interface {
	Register(ctx context.Context, client JiraClient, callbackURL string) error
}

// Storage records correlation keys and delivery outcomes on behalf of the
// dispatch surface. The bridge core never reads it; Jira stays the source of
// truth for issue identity.
type Storage interface {
	SaveCorrelation(record *models.CorrelationRecord) error
	LoadCorrelations(appID string) ([]*models.CorrelationRecord, error)
	RecordDelivery(record *models.DeliveryRecord) error
	DeliveryStats() (map[string]*models.AppDeliveryStats, error)
	Close() error
}

// WebService is the monitoring and dispatch HTTP surface.
type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
