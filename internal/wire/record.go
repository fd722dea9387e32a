// Package wire defines the JSON types exchanged between the registry client
// and the remote store gateway.
package wire

// Record is a beneficiary entry as it travels over the wire. ID is assigned
// by the store on create and is absent on submissions.
type Record struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	School       string `json:"school"`
	Sector       string `json:"sector"`
	Gender       string `json:"gender,omitempty"`
	Delivered    bool   `json:"delivered"`
	RegisteredAt string `json:"registeredAt"`
}

// FieldEdit is a single-field patch applied to an existing record.
type FieldEdit struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Message types pushed on the gateway's snapshot feed.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// SnapshotMessage is the envelope pushed to every subscriber. Each message
// carries the full current record set, never a delta.
type SnapshotMessage struct {
	Type    string   `json:"type"`
	Records []Record `json:"records,omitempty"`
	Error   string   `json:"error,omitempty"`
}
