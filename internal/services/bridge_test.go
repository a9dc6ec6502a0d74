package services

import (
	"context"
	"strings"
	"testing"
	"time"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"aktis-crashsync-jira/internal/models"

	"github.com/ternarybob/arbor"
)

type createCall struct {
	projectID   string
	summary     string
	description string
}

// fakeJiraClient records every interaction so tests can assert on call
// counts and request shapes.
type fakeJiraClient struct {
	project       *Project
	projectErr    error
	issue         *Issue
	refetched     *Issue
	issueErr      error
	created       *CreatedIssue
	createErr     error
	transitionErr error
	webhooks      []WebhookSubscription
	listErr       error
	deleteErr     error
	createHookErr error

	getIssueCalls  int
	createCalls    []createCall
	transitions    []TransitionRequest
	transitionURLs []string
	deleted        []string
	createdHooks   []WebhookSubscription
}

func (f *fakeJiraClient) GetProject(ctx context.Context, key string) (*Project, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	return f.project, nil
}

func (f *fakeJiraClient) GetIssue(ctx context.Context, idOrKey string) (*Issue, error) {
	f.getIssueCalls++
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	if f.getIssueCalls > 1 && f.refetched != nil {
		return f.refetched, nil
	}
	return f.issue, nil
}

func (f *fakeJiraClient) CreateIssue(ctx context.Context, projectID, summary, description string) (*CreatedIssue, error) {
	f.createCalls = append(f.createCalls, createCall{projectID, summary, description})
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeJiraClient) TransitionIssue(ctx context.Context, issueSelf string, req TransitionRequest) error {
	f.transitions = append(f.transitions, req)
	f.transitionURLs = append(f.transitionURLs, issueSelf)
	return f.transitionErr
}

func (f *fakeJiraClient) ListWebhooks(ctx context.Context) ([]WebhookSubscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.webhooks, nil
}

func (f *fakeJiraClient) CreateWebhook(ctx context.Context, sub WebhookSubscription) error {
	if f.createHookErr != nil {
		return f.createHookErr
	}
	f.createdHooks = append(f.createdHooks, sub)
	return nil
}

func (f *fakeJiraClient) DeleteWebhook(ctx context.Context, selfURL string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, selfURL)
	return nil
}

func testBridge(fake *fakeJiraClient) *issueSyncBridge {
	logger := arbor.NewLogger()
	cfg := DefaultConfig()
	factory := func(ref ProjectRef, username, password, issueTypeID string, timeout time.Duration) JiraClient {
		return fake
	}
	return newIssueSyncBridge(cfg, NewWebhookRegistrar(logger), logger, factory)
}

func testHookConfig() *models.HookConfig {
	return &models.HookConfig{
		ProjectURL: "https://jira.example.com/browse/CRASH",
		Username:   "bot",
		Password:   "secret",
		SyncIssues: true,
	}
}

func openIssue() *Issue {
	return &Issue{
		ID:   "10024",
		Key:  "CRASH-7",
		Self: "https://jira.example.com/rest/api/2/issue/10024",
		Fields: map[string]interface{}{
			"summary":    "a crash",
			"resolution": nil,
		},
	}
}

func resolvedIssue() *Issue {
	issue := openIssue()
	issue.Fields["resolution"] = map[string]interface{}{"name": "Fixed"}
	return issue
}

func millis(v int64) *int64 { return &v }

func TestCreateIssue_Success(t *testing.T) {
	fake := &fakeJiraClient{
		project: &Project{ID: "1000", Key: "CRASH"},
		created: &CreatedIssue{ID: "10024", Key: "CRASH-7"},
	}
	bridge := testBridge(fake)

	event := &models.ImpactEvent{
		Title:                "NullPointerException",
		Method:               "MainActivity.onCreate",
		URL:                  "https://crashlytics.com/issue/42",
		ImpactedDevicesCount: 5,
		CrashesCount:         12,
	}

	created, err := bridge.CreateIssue(context.Background(), testHookConfig(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "10024" || created.Key != "CRASH-7" {
		t.Fatalf("wrong correlation key: %+v", created)
	}

	if len(fake.createCalls) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(fake.createCalls))
	}
	call := fake.createCalls[0]
	if call.projectID != "1000" {
		t.Fatalf("wrong project id: %q", call.projectID)
	}
	if call.summary != "NullPointerException [Crashlytics]" {
		t.Fatalf("wrong summary: %q", call.summary)
	}
	if !strings.Contains(call.description, "https://crashlytics.com/issue/42") {
		t.Fatalf("description missing crash URL: %q", call.description)
	}
}

func TestCreateIssue_Pluralization(t *testing.T) {
	cases := []struct {
		devices uint64
		crashes uint64
		want    []string
		not     []string
	}{
		{1, 1, []string{"1 user", "1 time"}, []string{"1 users", "1 times"}},
		{5, 3, []string{"5 users", "3 times"}, nil},
	}

	for _, tc := range cases {
		fake := &fakeJiraClient{
			project: &Project{ID: "1000"},
			created: &CreatedIssue{ID: "1", Key: "CRASH-1"},
		}
		bridge := testBridge(fake)

		event := &models.ImpactEvent{
			Title:                "crash",
			URL:                  "https://crashlytics.com/issue/1",
			ImpactedDevicesCount: tc.devices,
			CrashesCount:         tc.crashes,
		}
		if _, err := bridge.CreateIssue(context.Background(), testHookConfig(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		description := fake.createCalls[0].description
		for _, want := range tc.want {
			if !strings.Contains(description, want) {
				t.Fatalf("description %q missing %q", description, want)
			}
		}
		for _, not := range tc.not {
			if strings.Contains(description, not) {
				t.Fatalf("description %q contains %q", description, not)
			}
		}
	}
}

func TestCreateIssue_MalformedURL(t *testing.T) {
	fake := &fakeJiraClient{}
	bridge := testBridge(fake)

	cfg := testHookConfig()
	cfg.ProjectURL = "https://jira.example.com/projects/CRASH"

	_, err := bridge.CreateIssue(context.Background(), cfg, &models.ImpactEvent{Title: "crash"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsErrorType(err, ErrorTypeCreate) {
		t.Fatalf("expected create error, got %v", err)
	}
	if len(fake.createCalls) != 0 {
		t.Fatalf("no create call may happen for a malformed URL")
	}
}

func TestCreateIssue_SanitizesMarkup(t *testing.T) {
	fake := &fakeJiraClient{
		project: &Project{ID: "1000"},
		created: &CreatedIssue{ID: "1", Key: "CRASH-1"},
	}
	bridge := testBridge(fake)

	event := &models.ImpactEvent{
		Title: "<b>Fatal Exception</b>",
		URL:   "https://crashlytics.com/issue/1",
	}
	if _, err := bridge.CreateIssue(context.Background(), testHookConfig(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.createCalls[0].summary != "Fatal Exception [Crashlytics]" {
		t.Fatalf("markup survived into summary: %q", fake.createCalls[0].summary)
	}
}

func TestVerifyConnection_Success(t *testing.T) {
	fake := &fakeJiraClient{project: &Project{ID: "1000"}}
	bridge := testBridge(fake)

	result := bridge.VerifyConnection(context.Background(), testHookConfig(), "app-1")
	if !result.OK {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Message != msgVerified {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if len(fake.createdHooks) != 1 {
		t.Fatalf("expected webhook registration, got %d", len(fake.createdHooks))
	}
}

func TestVerifyConnection_SkipsWebhookWhenSyncDisabled(t *testing.T) {
	fake := &fakeJiraClient{project: &Project{ID: "1000"}}
	bridge := testBridge(fake)

	cfg := testHookConfig()
	cfg.SyncIssues = false

	result := bridge.VerifyConnection(context.Background(), cfg, "app-1")
	if !result.OK {
		t.Fatalf("expected success: %+v", result)
	}
	if len(fake.createdHooks) != 0 {
		t.Fatalf("webhook must not be registered when sync is disabled")
	}
}

func TestVerifyConnection_AuthFailure(t *testing.T) {
	fake := &fakeJiraClient{projectErr: NewAuthError(CodeBadStatus, "401")}
	bridge := testBridge(fake)

	result := bridge.VerifyConnection(context.Background(), testHookConfig(), "app-1")
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.Message != msgCheckSettings {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestVerifyConnection_ProjectNotFound(t *testing.T) {
	fake := &fakeJiraClient{projectErr: NewJiraError(CodeProjectNotFound, "404")}
	bridge := testBridge(fake)

	result := bridge.VerifyConnection(context.Background(), testHookConfig(), "app-1")
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.Message != msgCheckProjectURL {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestVerifyConnection_MalformedURL(t *testing.T) {
	bridge := testBridge(&fakeJiraClient{})

	cfg := testHookConfig()
	cfg.ProjectURL = "nowhere"

	result := bridge.VerifyConnection(context.Background(), cfg, "app-1")
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.Message != msgCheckProjectURL {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestVerifyConnection_WebhookFailureIsSoft(t *testing.T) {
	fake := &fakeJiraClient{
		project:       &Project{ID: "1000"},
		createHookErr: NewJiraError(CodeBadStatus, "403"),
	}
	bridge := testBridge(fake)

	result := bridge.VerifyConnection(context.Background(), testHookConfig(), "app-1")
	if !result.OK {
		t.Fatalf("webhook failure must not fail verification: %+v", result)
	}
	if result.Message != msgWebhookWarning {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestFetchIssue_ReturnsSnapshot(t *testing.T) {
	fake := &fakeJiraClient{issue: openIssue()}
	bridge := testBridge(fake)

	snapshot, err := bridge.FetchIssue(context.Background(), testHookConfig(), "10024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot["key"] != "CRASH-7" {
		t.Fatalf("wrong snapshot: %v", snapshot)
	}
	if _, ok := snapshot["self"]; ok {
		t.Fatalf("self link leaked")
	}
}

func TestFetchIssue_ErrorPropagatesForSentinel(t *testing.T) {
	fake := &fakeJiraClient{issueErr: NewNetworkError(CodeBadStatus, "connection refused")}
	bridge := testBridge(fake)

	if _, err := bridge.FetchIssue(context.Background(), testHookConfig(), "10024"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSyncResolution_NoOpWhenBothOpen(t *testing.T) {
	fake := &fakeJiraClient{issue: openIssue()}
	bridge := testBridge(fake)

	snapshot, err := bridge.SyncResolution(context.Background(), testHookConfig(), &models.ResolutionEvent{JiraStoryID: "10024"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("no-op must not return a snapshot")
	}
	if len(fake.transitions) != 0 {
		t.Fatalf("no transition may be issued when both sides agree")
	}
	if fake.getIssueCalls != 1 {
		t.Fatalf("expected a single fetch, got %d", fake.getIssueCalls)
	}
}

func TestSyncResolution_NoOpWhenBothResolved(t *testing.T) {
	fake := &fakeJiraClient{issue: resolvedIssue()}
	bridge := testBridge(fake)

	snapshot, err := bridge.SyncResolution(context.Background(), testHookConfig(),
		&models.ResolutionEvent{JiraStoryID: "10024", ResolvedAt: millis(1700000000000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot != nil || len(fake.transitions) != 0 {
		t.Fatalf("expected no-op, got %v %v", snapshot, fake.transitions)
	}
}

func TestSyncResolution_ResolvesOpenIssue(t *testing.T) {
	fake := &fakeJiraClient{
		issue:     openIssue(),
		refetched: resolvedIssue(),
	}
	bridge := testBridge(fake)

	snapshot, err := bridge.SyncResolution(context.Background(), testHookConfig(),
		&models.ResolutionEvent{JiraStoryID: "10024", ResolvedAt: millis(1700000000000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.transitions) != 1 {
		t.Fatalf("expected exactly one transition, got %d", len(fake.transitions))
	}
	transition := fake.transitions[0]
	if transition.TransitionID != "2" {
		t.Fatalf("wrong transition id: %q", transition.TransitionID)
	}
	if transition.CommentBody != "This CR has been marked as resolved in Crashlytics" {
		t.Fatalf("wrong comment: %q", transition.CommentBody)
	}
	if fake.transitionURLs[0] != "https://jira.example.com/rest/api/2/issue/10024" {
		t.Fatalf("transition sent to wrong issue: %q", fake.transitionURLs[0])
	}

	// The transition response is not trusted: the issue must be re-fetched.
	if fake.getIssueCalls != 2 {
		t.Fatalf("expected re-fetch after transition, got %d fetches", fake.getIssueCalls)
	}
	resolution, ok := snapshot["resolution"].(map[string]interface{})
	if !ok || resolution["name"] != "Fixed" {
		t.Fatalf("snapshot not taken from re-fetched issue: %v", snapshot["resolution"])
	}
}

func TestSyncResolution_ReopensResolvedIssue(t *testing.T) {
	fake := &fakeJiraClient{
		issue:     resolvedIssue(),
		refetched: openIssue(),
	}
	bridge := testBridge(fake)

	_, err := bridge.SyncResolution(context.Background(), testHookConfig(),
		&models.ResolutionEvent{JiraStoryID: "10024"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.transitions) != 1 {
		t.Fatalf("expected exactly one transition, got %d", len(fake.transitions))
	}
	transition := fake.transitions[0]
	if transition.TransitionID != "3" {
		t.Fatalf("wrong transition id: %q", transition.TransitionID)
	}
	if transition.CommentBody != "This CR has been reopened in Crashlytics" {
		t.Fatalf("wrong comment: %q", transition.CommentBody)
	}
}

func TestSyncResolution_TransitionFailurePropagates(t *testing.T) {
	fake := &fakeJiraClient{
		issue:         openIssue(),
		transitionErr: NewNetworkError(CodeTransitionError, "timeout"),
	}
	bridge := testBridge(fake)

	_, err := bridge.SyncResolution(context.Background(), testHookConfig(),
		&models.ResolutionEvent{JiraStoryID: "10024", ResolvedAt: millis(1700000000000)})
	if err == nil {
		t.Fatalf("expected error")
	}
	if fake.getIssueCalls != 1 {
		t.Fatalf("no re-fetch may happen after a failed transition")
	}
}
