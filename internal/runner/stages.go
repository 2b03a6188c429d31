package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/persistence"
	"github.com/buralog/etl-healthcare/internal/pipeline"
)

// NormalizeProcessor adapts the normalization orchestrator to the consume
// loop: decode raw envelopes, process the decodable ones as a batch, and
// scatter per-item outcomes back to message positions. A payload that does
// not decode can never succeed; it keeps failing until delivery is exhausted
// and the loop dead-letters it.
func NormalizeProcessor(orc *pipeline.Orchestrator) BatchProcessor {
	return func(ctx context.Context, payloads [][]byte) []error {
		outcomes := make([]error, len(payloads))

		envelopes := make([]model.RawEnvelope, 0, len(payloads))
		positions := make([]int, 0, len(payloads))
		for i, payload := range payloads {
			var env model.RawEnvelope
			if err := json.Unmarshal(payload, &env); err != nil {
				outcomes[i] = fmt.Errorf("decode raw envelope: %w", err)
				continue
			}
			envelopes = append(envelopes, env)
			positions = append(positions, i)
		}

		if len(envelopes) > 0 {
			report := orc.ProcessBatch(ctx, envelopes)
			for _, item := range report.Items() {
				outcomes[positions[item.Index]] = item.Err
			}
		}
		return outcomes
	}
}

// PersistProcessor adapts the persistence engine to the consume loop the
// same way NormalizeProcessor adapts the orchestrator.
func PersistProcessor(engine *persistence.Engine) BatchProcessor {
	return func(ctx context.Context, payloads [][]byte) []error {
		outcomes := make([]error, len(payloads))

		events := make([]model.NormalizedEventEnvelope, 0, len(payloads))
		positions := make([]int, 0, len(payloads))
		for i, payload := range payloads {
			var event model.NormalizedEventEnvelope
			if err := json.Unmarshal(payload, &event); err != nil {
				outcomes[i] = fmt.Errorf("decode normalized envelope: %w", err)
				continue
			}
			events = append(events, event)
			positions = append(positions, i)
		}

		if len(events) > 0 {
			report := engine.ProcessBatch(ctx, events)
			for _, item := range report.Items() {
				outcomes[positions[item.Index]] = item.Err
			}
		}
		return outcomes
	}
}
