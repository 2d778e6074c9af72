package model

// Event names pushed to bulk action channels.
const (
	EventOverview       = "overview"
	EventReportReady    = "report:ready"
	EventReportBatch    = "report:batch"
	EventReportComplete = "report:complete"
)

// ReportReady announces that a bulk action is about to stream affected keys.
type ReportReady struct {
	ID         string     `json:"id"`
	DatabaseID string     `json:"databaseId"`
	Type       ActionType `json:"type"`
	Filter     Filter     `json:"filter"`
}

// ReportBatch carries one batch of affected keys.
// Total is the exact number of keys streamed so far, including this batch.
type ReportBatch struct {
	ID    string   `json:"id"`
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
	Total int64    `json:"total"`
}

// ReportComplete is the final event streamed for a bulk action.
type ReportComplete struct {
	Overview Overview `json:"overview"`
}

// NodeInfo describes one primary node of a database.
type NodeInfo struct {
	Addr string `json:"addr"`
	Keys int64  `json:"keys"`
}
