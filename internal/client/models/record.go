// Package models defines the client-side view of registry data: records,
// queued writes and queued edits, plus the dedup/sort helpers the cache and
// queue are built on.
package models

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/todosutiles/kitsync/internal/wire"
)

// Record is a beneficiary entry as seen by the client. RemoteID is the
// store-assigned identifier; it is empty for records that only exist
// locally and is stripped before any (re-)submission, so replayed records
// are always created as new remote entries.
type Record struct {
	RemoteID     string `json:"id,omitempty"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	School       string `json:"school"`
	Sector       string `json:"sector"`
	Gender       string `json:"gender,omitempty"`
	Delivered    bool   `json:"delivered"`
	RegisteredAt string `json:"registeredAt"`
}

// Key returns the composite identity used to deduplicate records across
// sources. Two records with the same name and registration timestamp are
// the same logical record, regardless of which store assigned which id.
func (r Record) Key() string {
	return r.Name + "-" + r.RegisteredAt
}

// SameSubmission reports whether two records came from the same form
// submission: identical name, age and registration timestamp.
func (r Record) SameSubmission(other Record) bool {
	return r.Name == other.Name && r.Age == other.Age && r.RegisteredAt == other.RegisteredAt
}

// InRange reports whether the record's registration timestamp falls inside
// [from, to]. Empty bounds are open. Plain string comparison is correct
// because timestamps are ISO-8601.
func (r Record) InRange(from, to string) bool {
	if from != "" && r.RegisteredAt < from {
		return false
	}
	if to != "" && r.RegisteredAt > to {
		return false
	}
	return true
}

// ToWire converts the record to its wire form.
func (r Record) ToWire() wire.Record {
	return wire.Record{
		ID:           r.RemoteID,
		Name:         r.Name,
		Age:          r.Age,
		School:       r.School,
		Sector:       r.Sector,
		Gender:       r.Gender,
		Delivered:    r.Delivered,
		RegisteredAt: r.RegisteredAt,
	}
}

// FromWire converts a wire record to the client model.
func FromWire(w wire.Record) Record {
	return Record{
		RemoteID:     w.ID,
		Name:         w.Name,
		Age:          w.Age,
		School:       w.School,
		Sector:       w.Sector,
		Gender:       w.Gender,
		Delivered:    w.Delivered,
		RegisteredAt: w.RegisteredAt,
	}
}

// FromWireList converts a full remote snapshot.
func FromWireList(ws []wire.Record) []Record {
	result := make([]Record, 0, len(ws))
	for _, w := range ws {
		result = append(result, FromWire(w))
	}
	return result
}

// PendingWrite is a record queued while offline, tagged with a locally
// generated identifier. The local id never leaves the client.
type PendingWrite struct {
	LocalID string `json:"_id"`
	Record
}

// NewLocalID derives the temporary identifier for a queued record from its
// creation time.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("id-%d", now.UnixMilli())
}

// PendingEdit is a single-field mutation queued while offline.
type PendingEdit struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Equal reports whether two edits are the exact same (id, field, value)
// tuple. Numeric values are normalized first, since a JSON round trip
// turns every number into float64.
func (e PendingEdit) Equal(other PendingEdit) bool {
	return e.ID == other.ID && e.Field == other.Field &&
		reflect.DeepEqual(normalize(e.Value), normalize(other.Value))
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// DedupeRecords removes composite-key duplicates, keeping the first record
// encountered in input order. Input order therefore determines which
// duplicate survives; callers must not assume it is the newest write.
func DedupeRecords(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	result := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		result = append(result, r)
	}
	return result
}

// SortByRegisteredAt sorts records newest-first by registration timestamp.
// The sort is stable so equal timestamps keep their input order.
func SortByRegisteredAt(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		switch {
		case a.RegisteredAt > b.RegisteredAt:
			return -1
		case a.RegisteredAt < b.RegisteredAt:
			return 1
		default:
			return 0
		}
	})
}
