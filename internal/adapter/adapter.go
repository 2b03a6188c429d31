// Package adapter contains the pure format parsers that turn raw payload
// bytes into canonical observation DTOs. Adapters do no I/O, hold no state,
// and are restartable: parsing the same bytes twice yields the same DTOs.
package adapter

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/buralog/etl-healthcare/internal/model"
)

// ParseContext carries the envelope-level attributes an adapter stamps onto
// every DTO it produces.
type ParseContext struct {
	TenantID     string
	SourceSystem string
}

// Drop records one skipped row or segment and why it was skipped.
type Drop struct {
	Locator string `json:"locator"`
	Reason  string `json:"reason"`
}

// ParseReport summarizes a single adapter invocation. Dropped rows never
// abort their siblings; they are counted here instead.
type ParseReport struct {
	Parsed  int    `json:"parsed"`
	Dropped int    `json:"dropped"`
	Drops   []Drop `json:"drops,omitempty"`
}

func (r *ParseReport) drop(locator, reason string) {
	r.Dropped++
	r.Drops = append(r.Drops, Drop{Locator: locator, Reason: reason})
}

// Adapter converts a raw payload into an ordered sequence of canonical DTOs.
type Adapter interface {
	// Parse returns the surviving DTOs in input order plus a report of rows
	// or segments that were dropped. A non-nil error means the payload as a
	// whole was unusable, not that individual records failed.
	Parse(payload []byte, pc ParseContext) ([]model.ObservationDTO, *ParseReport, error)

	// Supports reports whether this adapter handles the given format.
	Supports(f model.Format) bool
}

// Registry holds ordered adapters and finds a match for a given format.
// The passthrough adapter is registered last and supports every format, so
// Find never returns nil on a registry built by NewRegistry.
type Registry struct {
	items []Adapter
}

// NewRegistry constructs a registry with provided adapters.
func NewRegistry(items ...Adapter) *Registry {
	return &Registry{items: items}
}

// Find returns the first adapter that supports the format.
func (r *Registry) Find(f model.Format) Adapter {
	if r == nil {
		return nil
	}
	for _, a := range r.items {
		if a.Supports(f) {
			return a
		}
	}
	return nil
}

// ContentHash returns the hex SHA-256 of the given bytes. Used for record
// traceability and as the stable entity identity of a parsed record.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
