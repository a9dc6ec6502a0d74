package services

import (
	"context"
	"testing"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"github.com/ternarybob/arbor"
)

const callbackURL = "https://crashlytics.com/api/v3/projects/app-1/service_hooks/jira/responses"

func TestRegister_CreatesSubscription(t *testing.T) {
	fake := &fakeJiraClient{}
	registrar := NewWebhookRegistrar(arbor.NewLogger())

	if err := registrar.Register(context.Background(), fake, callbackURL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.createdHooks) != 1 {
		t.Fatalf("expected 1 created subscription, got %d", len(fake.createdHooks))
	}
	sub := fake.createdHooks[0]
	if sub.URL != callbackURL {
		t.Fatalf("wrong url: %q", sub.URL)
	}
	if sub.Name != "Crashlytics issue sync" {
		t.Fatalf("wrong name: %q", sub.Name)
	}
	if len(sub.Events) != 1 || sub.Events[0] != "issue_updated" {
		t.Fatalf("wrong events: %v", sub.Events)
	}
	if sub.ExcludeIssueDetails {
		t.Fatalf("issue details must be included")
	}
}

func TestRegister_DeletesAllDuplicatesFirst(t *testing.T) {
	fake := &fakeJiraClient{
		webhooks: []WebhookSubscription{
			{URL: callbackURL, Self: "https://jira.example.com/rest/webhooks/1.0/webhook/1"},
			{URL: "https://other.example.com/hook", Self: "https://jira.example.com/rest/webhooks/1.0/webhook/2"},
			{URL: callbackURL, Self: "https://jira.example.com/rest/webhooks/1.0/webhook/3"},
		},
	}
	registrar := NewWebhookRegistrar(arbor.NewLogger())

	if err := registrar.Register(context.Background(), fake, callbackURL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.deleted) != 2 {
		t.Fatalf("expected 2 deletions, got %v", fake.deleted)
	}
	for _, self := range fake.deleted {
		if self == "https://jira.example.com/rest/webhooks/1.0/webhook/2" {
			t.Fatalf("unrelated subscription was deleted")
		}
	}
	if len(fake.createdHooks) != 1 {
		t.Fatalf("expected exactly 1 created subscription, got %d", len(fake.createdHooks))
	}
}

func TestRegister_ListFailureIsRegistrationError(t *testing.T) {
	fake := &fakeJiraClient{listErr: NewJiraError(CodeBadStatus, "500")}
	registrar := NewWebhookRegistrar(arbor.NewLogger())

	err := registrar.Register(context.Background(), fake, callbackURL)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsErrorType(err, ErrorTypeRegistration) {
		t.Fatalf("expected registration error, got %v", err)
	}
	if len(fake.createdHooks) != 0 {
		t.Fatalf("no subscription may be created after a failed list")
	}
}

func TestRegister_DeleteFailureAborts(t *testing.T) {
	fake := &fakeJiraClient{
		webhooks:  []WebhookSubscription{{URL: callbackURL, Self: "https://jira.example.com/rest/webhooks/1.0/webhook/1"}},
		deleteErr: NewJiraError(CodeBadStatus, "500"),
	}
	registrar := NewWebhookRegistrar(arbor.NewLogger())

	if err := registrar.Register(context.Background(), fake, callbackURL); err == nil {
		t.Fatalf("expected error")
	}
	if len(fake.createdHooks) != 0 {
		t.Fatalf("no subscription may be created after a failed delete")
	}
}
