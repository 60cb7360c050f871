// Package storage persists poll state so a restart does not re-announce
// a status the chat has already seen.
//
// It currently supports:
//   - Poll state snapshots (last timestamp, last status, last error)
//   - An append-only audit of notifications sent by the poll loop
//
// Storage is optional; with no driver configured the poll loop keeps its
// state in memory only.
package storage
