package services

import (
	"path/filepath"
	"testing"

	. "aktis-crashsync-jira/internal/common"

	"aktis-crashsync-jira/internal/models"
)

func tempStorage(t *testing.T) *storage {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStorage(&StorageConfig{
		DatabasePath:  filepath.Join(dir, "bridge.db"),
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.(*storage)
}

func TestStorage_CorrelationRoundTrip(t *testing.T) {
	s := tempStorage(t)

	records := []*models.CorrelationRecord{
		{AppID: "app-1", IssueID: "10024", IssueKey: "CRASH-7", Title: "NPE"},
		{AppID: "app-1", IssueID: "10025", IssueKey: "CRASH-8", Title: "OOM"},
		{AppID: "app-2", IssueID: "20001", IssueKey: "OTHER-1", Title: "ANR"},
	}
	for _, record := range records {
		if err := s.SaveCorrelation(record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	loaded, err := s.LoadCorrelations("app-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 correlations for app-1, got %d", len(loaded))
	}
	for _, record := range loaded {
		if record.AppID != "app-1" {
			t.Fatalf("correlation from wrong app: %+v", record)
		}
		if record.CreatedAt == "" {
			t.Fatalf("created_at not stamped")
		}
	}
}

func TestStorage_SaveCorrelationOverwritesSameKey(t *testing.T) {
	s := tempStorage(t)

	for i := 0; i < 3; i++ {
		if err := s.SaveCorrelation(&models.CorrelationRecord{
			AppID: "app-1", IssueID: "10024", IssueKey: "CRASH-7",
		}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	loaded, err := s.LoadCorrelations("app-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("re-saving the same correlation must not duplicate it, got %d", len(loaded))
	}
}

func TestStorage_DeliveryStats(t *testing.T) {
	s := tempStorage(t)

	deliveries := []*models.DeliveryRecord{
		{AppID: "app-1", Operation: "impact", OK: true},
		{AppID: "app-1", Operation: "resolution", OK: false, Message: "timeout"},
		{AppID: "app-1", Operation: "issue", OK: true},
		{AppID: "app-2", Operation: "verify", OK: true},
	}
	for _, record := range deliveries {
		if err := s.RecordDelivery(record); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	stats, err := s.DeliveryStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	app1 := stats["app-1"]
	if app1 == nil || app1.Delivered != 2 || app1.Failed != 1 {
		t.Fatalf("wrong stats for app-1: %+v", app1)
	}
	if app1.LastOperation != "issue" {
		t.Fatalf("wrong last operation: %q", app1.LastOperation)
	}
	if stats["app-2"] == nil || stats["app-2"].Delivered != 1 {
		t.Fatalf("wrong stats for app-2: %+v", stats["app-2"])
	}
}
