package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	SourceService string    `json:"source_service"`
	TraceID       string    `json:"trace_id"`
	SchemaVersion int       `json:"schema_version"`
	// Subject is the aggregate the event belongs to (delegation id) and is
	// also the partition key for ordered consumption per delegation.
	Subject string `json:"subject"`
	// ChainHash carries the audit chain hash of the underlying event so
	// downstream consumers can cross-check against the verified chain.
	ChainHash string          `json:"chain_hash,omitempty"`
	Data      json.RawMessage `json:"data"`
}
