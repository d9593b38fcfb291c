package domain

import (
	"encoding/json"
	"time"
)

// EntityKind names a syncable table. The kind plus the row ID is the
// key the remote store addresses rows by.
type EntityKind string

const (
	KindTune       EntityKind = "tune"
	KindRepertoire EntityKind = "repertoire"
	KindPractice   EntityKind = "practice_record"
	KindNote       EntityKind = "note"
	KindReference  EntityKind = "reference"
)

// Op is the outbox operation type.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// OutboxEntry is one pending local mutation awaiting delivery to the
// remote store. Entries are drained in Sequence order; entries for the
// same (Kind, RowID) must never be delivered out of order.
type OutboxEntry struct {
	ID        int64
	Kind      EntityKind
	RowID     string
	Op        Op
	Payload   json.RawMessage
	Sequence  int64
	CreatedAt time.Time
}

// RowKey identifies a row across local and remote stores.
type RowKey struct {
	Kind  EntityKind
	RowID string
}
