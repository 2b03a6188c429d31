package pipeline

import "errors"

// Item-level failure classes. Each marks the whole batch item as failed and
// redeliverable; per-record problems inside an item are dropped and counted
// instead (see adapter.ParseReport).
var (
	// ErrEnvelopeInvalid marks a raw envelope that failed schema validation.
	ErrEnvelopeInvalid = errors.New("raw envelope failed validation")

	// ErrPayloadUnusable marks a payload no adapter could parse at all
	// (e.g. a CSV with a broken header). Redelivery lands it in the DLQ.
	ErrPayloadUnusable = errors.New("payload unusable")

	// ErrInfrastructure marks a transient blob store or publish failure.
	ErrInfrastructure = errors.New("transient infrastructure failure")
)
