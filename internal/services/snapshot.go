package services

import (
	. "aktis-crashsync-jira/internal/interfaces"

	"aktis-crashsync-jira/internal/models"
)

// snapshotFields is the fixed allow-list of Jira fields the crash platform
// is allowed to see. Anything outside it is dropped on purpose: the Jira
// schema is open-ended and the projection narrows it to a stable surface.
var snapshotFields = []string{
	"assignee",
	"created",
	"creator",
	"description",
	"issuetype",
	"priority",
	"project",
	"reporter",
	"resolution",
	"resolutiondate",
	"status",
	"summary",
	"updated",
}

const selfLink = "self"

// ProjectSnapshot converts a raw Jira issue into its allow-listed snapshot.
// Pure and deterministic: the input issue is never mutated.
//
// Allow-listed fields absent on the issue come through as explicit nulls so
// callers can tell "field empty" from "field not requested". Self links are
// stripped at every level they appear: the issue, each field object, each
// comment.
func ProjectSnapshot(issue *Issue) models.IssueSnapshot {
	snapshot := models.IssueSnapshot{
		"id":  issue.ID,
		"key": issue.Key,
	}

	for _, name := range snapshotFields {
		snapshot[name] = stripSelf(issue.Fields[name])
	}

	if comments := issue.Comments(); len(comments) > 0 {
		projected := make([]interface{}, 0, len(comments))
		for _, comment := range comments {
			projected = append(projected, stripSelf(comment))
		}
		snapshot["comments"] = projected
	}

	return snapshot
}

// stripSelf returns value with any self link removed when the value is a
// structured object. Scalars and nulls pass through unchanged.
func stripSelf(value interface{}) interface{} {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	clean := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if k == selfLink {
			continue
		}
		clean[k] = v
	}
	return clean
}
