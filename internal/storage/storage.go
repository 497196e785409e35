// Package storage keeps a local snapshot of the calendar state so a fresh
// session can start from the last known state before the first feed push.
package storage

import (
	"github.com/Kerhoff/courtcal/internal/models"
)

// SchemaVersion is bumped whenever the snapshot layout changes incompatibly.
// Snapshots written under another version are ignored on load.
const SchemaVersion = 1

// Key names the single slot the snapshot is written to.
const Key = "courtcal:calendar"

// Snapshot is the persisted form of the calendar state, toast included.
type Snapshot struct {
	Version int `json:"version"`
	models.CalendarState
}

// NewSnapshot wraps a state for persisting.
func NewSnapshot(state models.CalendarState) Snapshot {
	return Snapshot{Version: SchemaVersion, CalendarState: state}
}

// Store is the local persistence adapter.
//
// Save overwrites the previous snapshot. Load returns the stored snapshot, or
// fallback when nothing usable is stored; it never fails.
type Store interface {
	Save(snapshot Snapshot) error
	Load(fallback Snapshot) Snapshot
}

// NopStore is used where there is no persistent storage.
type NopStore struct{}

// Save does nothing.
func (NopStore) Save(Snapshot) error { return nil }

// Load always returns the fallback.
func (NopStore) Load(fallback Snapshot) Snapshot { return fallback }
