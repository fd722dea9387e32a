// Package common defines shared constants and sentinel errors used across
// the client and server layers of kitsync. Callers should use errors.Is to
// match the error values.
package common

// Local storage slots used by the sync core. The slot names are part of the
// on-disk format and must not change between releases.
const (
	// CacheSlot holds the persisted cache snapshot (a JSON array of records).
	CacheSlot = "registrosLocalCache"

	// PendingWritesSlot holds the queue of records registered while offline.
	PendingWritesSlot = "registrosOfflinePendientes"

	// PendingEditsSlot holds the queue of field edits made while offline.
	PendingEditsSlot = "edit_pending"
)
