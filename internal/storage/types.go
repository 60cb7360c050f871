package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot + JSON Lines audit next to Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// State is the persisted form of the poll loop state.
type State struct {
	LastTimestamp int64     `json:"last_timestamp"`
	LastStatus    string    `json:"last_status,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Audit entry kinds.
const (
	AuditStatus = "status"
	AuditError  = "error"
)

// AuditEntry records one notification attempt made by the poll loop.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"` // AuditStatus or AuditError
	Homework  string    `json:"homework,omitempty"`
	Status    string    `json:"status,omitempty"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
}
