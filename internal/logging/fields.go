package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService    = "service"
	FieldTenant     = "tenant_id"
	FieldSource     = "source"
	FieldFormat     = "format"
	FieldEntityType = "entity_type"
	FieldEntityID   = "entity_id"
	FieldVersion    = "version"
	FieldSubject    = "subject"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Tenant returns a slog attribute for the tenant ID.
func Tenant(id string) slog.Attr {
	return slog.String(FieldTenant, id)
}

// Source returns a slog attribute for the source system label.
func Source(source string) slog.Attr {
	return slog.String(FieldSource, source)
}

// Format returns a slog attribute for the payload format.
func Format(format string) slog.Attr {
	return slog.String(FieldFormat, format)
}

// Entity returns slog attributes identifying a stored entity.
func Entity(entityType, entityID string) []any {
	return []any{
		slog.String(FieldEntityType, entityType),
		slog.String(FieldEntityID, entityID),
	}
}

// Subject returns a slog attribute for a messaging subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}
