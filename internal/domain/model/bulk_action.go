// Package model defines the core data types shared by the bulk action engine, its adapters and the HTTP API.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ActionType identifies the mutation a bulk action applies to every matched key.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ActionType string

// Status represents the lifecycle status of a bulk action.
type Status string

const (
	// ActionTypeDelete removes matched keys with DEL.
	ActionTypeDelete ActionType = "delete"
	// ActionTypeUnlink removes matched keys with UNLINK (memory is reclaimed asynchronously).
	ActionTypeUnlink ActionType = "unlink"

	// StatusInitialized is the status of a freshly created bulk action.
	StatusInitialized Status = "initialized"
	// StatusPreparing indicates shard nodes are being discovered and runners constructed.
	StatusPreparing Status = "preparing"
	// StatusReady indicates every runner prepared successfully.
	StatusReady Status = "ready"
	// StatusRunning indicates runners have been dispatched.
	StatusRunning Status = "running"
	// StatusCompleted indicates every runner finished without error.
	StatusCompleted Status = "completed"
	// StatusFailed indicates at least one runner failed.
	StatusFailed Status = "failed"
	// StatusAborted indicates the action was stopped by an external caller.
	StatusAborted Status = "aborted"
)

// Filter defaults.
const (
	DefaultFilterMatch       = "*"
	DefaultFilterCount int64 = 10_000
)

// UnmarshalText implements encoding.TextUnmarshaler for ActionType.
func (t *ActionType) UnmarshalText(text []byte) error {
	v := ActionType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ActionType: %q", string(v))
	}
	*t = v
	return nil
}

// Valid returns true if the ActionType is known.
func (t ActionType) Valid() bool {
	return t == ActionTypeDelete || t == ActionTypeUnlink
}

// Command returns the Redis command used to apply the action to a single key.
func (t ActionType) Command() string {
	switch t {
	case ActionTypeUnlink:
		return "unlink"
	case ActionTypeDelete:
		return "del"
	default:
		return ""
	}
}

// IsTerminal reports whether no further status change is accepted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}

// redisDataTypes are the values accepted by SCAN ... TYPE.
var redisDataTypes = map[string]struct{}{
	"string":    {},
	"list":      {},
	"set":       {},
	"zset":      {},
	"hash":      {},
	"stream":    {},
	"ReJSON-RL": {},
	"graphdata": {},
	"TSDB-TYPE": {},
}

// Filter selects the keys a bulk action targets.
type Filter struct {
	Match string `json:"match"`
	Type  string `json:"type,omitempty"`
	Count int64  `json:"count"`
}

// Normalize fills in defaults for unset fields.
func (f Filter) Normalize() Filter {
	if strings.TrimSpace(f.Match) == "" {
		f.Match = DefaultFilterMatch
	}
	if f.Count <= 0 {
		f.Count = DefaultFilterCount
	}
	f.Type = strings.TrimSpace(f.Type)
	return f
}

// FieldError reports an invalid request field by its JSON name.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Validate validates the filter fields.
func (f Filter) Validate() error {
	if f.Count < 0 {
		return &FieldError{Field: "filter.count", Message: "filter count must be positive"}
	}
	if f.Type == "" {
		return nil
	}
	if _, ok := redisDataTypes[f.Type]; !ok {
		return &FieldError{Field: "filter.type", Message: fmt.Sprintf("unsupported key type %q", f.Type)}
	}
	return nil
}

// Progress reports how far through a keyspace a bulk action has scanned.
type Progress struct {
	Total   int64 `json:"total"`
	Scanned int64 `json:"scanned"`
}

// ItemError records the failure to apply an action to a single key.
type ItemError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SummaryOverview is the serialized form of a result summary.
type SummaryOverview struct {
	Processed int64       `json:"processed"`
	Succeeded int64       `json:"succeeded"`
	Failed    int64       `json:"failed"`
	Errors    []ItemError `json:"errors"`
	Keys      []string    `json:"keys"`
}

// Overview is the externally visible snapshot of a bulk action.
type Overview struct {
	ID         string          `json:"id"`
	DatabaseID string          `json:"databaseId"`
	Type       ActionType      `json:"type"`
	Status     Status          `json:"status"`
	Filter     Filter          `json:"filter"`
	Progress   Progress        `json:"progress"`
	Summary    SummaryOverview `json:"summary"`
	Duration   int64           `json:"duration"`
	Error      string          `json:"error,omitempty"`
}

// CreateBulkActionRequest represents a request to start a bulk action against a database.
type CreateBulkActionRequest struct {
	ID             string     `json:"id,omitempty"`
	DatabaseID     string     `json:"databaseId"`
	Type           ActionType `json:"type"`
	Filter         Filter     `json:"filter"`
	GenerateReport bool       `json:"generateReport,omitempty"`
}

// Validate validates the CreateBulkActionRequest fields.
func (r *CreateBulkActionRequest) Validate() error {
	if strings.TrimSpace(r.DatabaseID) == "" {
		return &FieldError{Field: "databaseId", Message: "database id is required"}
	}
	if !r.Type.Valid() {
		return &FieldError{Field: "type", Message: "invalid bulk action type"}
	}
	if r.ID != "" {
		if _, err := uuid.Parse(r.ID); err != nil {
			return &FieldError{Field: "id", Message: "bulk action id must be a valid UUID"}
		}
	}
	return r.Filter.Validate()
}
