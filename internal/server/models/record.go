// Package models defines server-side data models persisted in the database.
package models

import "github.com/todosutiles/kitsync/internal/wire"

// Record is a registry entry for a beneficiary of a school-supply kit.
// RegisteredAt is kept as the ISO-8601 string the client submitted so
// ordering and dedup semantics match the client exactly.
type Record struct {
	ID           string
	Name         string
	Age          int
	School       string
	Sector       string
	Gender       string
	Delivered    bool
	RegisteredAt string
}

// ToWire converts the record to its wire representation.
func (r Record) ToWire() wire.Record {
	return wire.Record{
		ID:           r.ID,
		Name:         r.Name,
		Age:          r.Age,
		School:       r.School,
		Sector:       r.Sector,
		Gender:       r.Gender,
		Delivered:    r.Delivered,
		RegisteredAt: r.RegisteredAt,
	}
}

// FromWire converts a wire record into the persistence model.
func FromWire(w wire.Record) Record {
	return Record{
		ID:           w.ID,
		Name:         w.Name,
		Age:          w.Age,
		School:       w.School,
		Sector:       w.Sector,
		Gender:       w.Gender,
		Delivered:    w.Delivered,
		RegisteredAt: w.RegisteredAt,
	}
}

// ToWireList converts a slice of records, preserving order. A nil input
// yields an empty slice so JSON marshalling produces [] instead of null.
func ToWireList(records []Record) []wire.Record {
	result := make([]wire.Record, 0, len(records))
	for _, r := range records {
		result = append(result, r.ToWire())
	}
	return result
}
