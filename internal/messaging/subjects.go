package messaging

// Subject constants for the record pipeline bus.
// Follow the pattern: {domain}.{stage}.
const (
	// SubjectRawRecords carries RawEnvelope events from the receiver.
	SubjectRawRecords = "records.raw"

	// SubjectNormalizedRecords carries NormalizedEventEnvelope events.
	SubjectNormalizedRecords = "records.normalized"

	// SubjectPersistedRecords carries PersistedConfirmationEvent events for
	// audit/indexing collaborators.
	SubjectPersistedRecords = "records.persisted"

	// SubjectAudit receives best-effort audit notifications.
	SubjectAudit = "records.audit"

	// SubjectDLQPrefix prefixes dead-letter subjects; the failure stage is
	// appended (e.g. records.dlq.normalize).
	SubjectDLQPrefix = "records.dlq."
)

// Stream names for the JetStream work queues.
const (
	StreamRecords = "RECORDS"
	StreamDLQ     = "RECORDS_DLQ"
)

// Durable consumer names for load-balanced stage workers.
const (
	ConsumerNormalizer = "normalizer-workers"
	ConsumerPersister  = "persister-workers"
)

// DLQSubject returns the dead-letter subject for a pipeline stage.
func DLQSubject(stage string) string {
	return SubjectDLQPrefix + stage
}
