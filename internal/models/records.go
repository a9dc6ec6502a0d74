package models

// CorrelationRecord is the durable cross-system key recorded by the dispatch
// surface after a successful creation. Jira remains the source of truth for
// the issue itself; this exists so operators can see what was opened where.
type CorrelationRecord struct {
	AppID     string `json:"app_id"`
	IssueID   string `json:"issue_id"`
	IssueKey  string `json:"issue_key"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// DeliveryRecord is one hook delivery outcome.
type DeliveryRecord struct {
	AppID     string `json:"app_id"`
	Operation string `json:"operation"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AppDeliveryStats aggregates delivery outcomes per application for the
// status endpoint.
type AppDeliveryStats struct {
	AppID         string `json:"app_id"`
	Delivered     int    `json:"delivered"`
	Failed        int    `json:"failed"`
	LastOperation string `json:"last_operation,omitempty"`
	LastDelivery  string `json:"last_delivery,omitempty"`
}
