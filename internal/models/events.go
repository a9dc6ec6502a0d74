package models

// HookConfig is the per-application integration settings the crash platform
// collects from the operator and supplies with every dispatch. It is
// immutable for the duration of a call and may differ between calls.
type HookConfig struct {
	// ProjectURL must contain a /browse/<PROJECTKEY> path segment.
	ProjectURL string `json:"project_url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	// SyncIssues controls whether verification also registers the
	// issue_updated webhook.
	SyncIssues bool `json:"sync_issues"`
}

// ImpactEvent is the crash-impact payload that triggers issue creation.
type ImpactEvent struct {
	Title                string `json:"title"`
	Method               string `json:"method"`
	URL                  string `json:"url"`
	ImpactedDevicesCount uint64 `json:"impactedDevicesCount"`
	CrashesCount         uint64 `json:"crashesCount"`
}

// ResolutionEvent is the payload driving resolution-state reconciliation.
// ResolvedAt carries epoch milliseconds when the crash platform considers
// the issue resolved; absence means reopened. Only presence feeds the state
// machine.
type ResolutionEvent struct {
	JiraStoryID string `json:"jiraStoryId"`
	ResolvedAt  *int64 `json:"resolvedAt,omitempty"`
}

// IssueSnapshot is the allow-listed projection of a Jira issue handed back
// to the crash platform. Allow-listed fields the issue lacks appear as
// explicit nulls; self links never appear at any level.
type IssueSnapshot map[string]interface{}

// VerifyResult is the two-valued outcome of a connection check. Verification
// is a health check, so failures are reported here rather than escalated.
type VerifyResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
