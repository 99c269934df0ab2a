package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// maxChunkSize caps how many addresses one OID-range chunk covers.
const maxChunkSize int64 = 1000

// Summary reports the outcome of a batch validation run.
type Summary struct {
	RunID     string
	Processed int
	Flagged   int
	Skipped   int
	Failed    int
}

// Runner drives batch validation over the whole address table.
type Runner struct {
	store     store.FeatureStore
	validator *Validator
	log       *logger.Logger
}

// NewRunner creates a batch runner around a validator.
func NewRunner(st store.FeatureStore, validator *Validator, log *logger.Logger) *Runner {
	return &Runner{
		store:     st,
		validator: validator,
		log:       log.WithComponent("batch"),
	}
}

// Run validates every address not already recorded in ValidatedAddresses.
//
// The address table is walked in fixed-size OID-range chunks sized from the
// table's OID extent. A failure validating one address is logged and the
// batch continues; only store-level failures abort the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.New().String()}

	seen, err := r.validatedIdentifiers(ctx)
	if err != nil {
		return nil, err
	}

	minOID, maxOID, err := r.store.OIDRange(ctx, r.validator.addrLayer)
	if err != nil {
		return nil, fmt.Errorf("failed to read address table OID range: %w", err)
	}
	if maxOID == 0 {
		r.log.Info("Address table is empty, nothing to validate", map[string]interface{}{
			"run_id": summary.RunID,
		})
		return summary, nil
	}

	chunk := chunkSize(minOID, maxOID)
	r.log.Info("Starting batch validation", map[string]interface{}{
		"run_id":     summary.RunID,
		"min_oid":    minOID,
		"max_oid":    maxOID,
		"chunk_size": chunk,
		"validated":  len(seen),
	})

	for lo := minOID; lo <= maxOID; lo += chunk {
		hi := lo + chunk - 1
		if hi > maxOID {
			hi = maxOID
		}

		features, err := r.store.QueryRange(ctx, r.validator.addrLayer, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("failed to read address chunk [%d, %d]: %w", lo, hi, err)
		}

		for _, addr := range features {
			id := addr.GetString(r.validator.guidField)
			if id != "" && seen[id] {
				summary.Skipped++
				continue
			}

			res, err := r.validator.Validate(ctx, addr, nil)
			if err != nil {
				summary.Failed++
				r.log.Warn("Address validation failed, continuing", map[string]interface{}{
					"run_id": summary.RunID,
					"oid":    addr.OID,
					"error":  err.Error(),
				})
				continue
			}

			summary.Processed++
			if res.FlagCount() > 0 {
				summary.Flagged++
			}
			if id != "" {
				seen[id] = true
			}
		}
	}

	r.log.Info("Batch validation complete", map[string]interface{}{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"flagged":   summary.Flagged,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	})
	return summary, nil
}

// validatedIdentifiers reads the already-processed identifier set once up
// front, gating re-validation across runs.
func (r *Runner) validatedIdentifiers(ctx context.Context) (map[string]bool, error) {
	rows, err := r.store.Query(ctx, schema.LayerValidatedAddresses, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read validated addresses: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if id := row.GetString("NENA_GUID"); id != "" {
			seen[id] = true
		}
	}
	return seen, nil
}

// chunkSize picks the OID window per chunk: a tenth of the table's OID
// extent, capped at maxChunkSize and floored at one.
func chunkSize(minOID, maxOID int64) int64 {
	extent := maxOID - minOID + 1
	chunk := extent / 10
	if chunk > maxChunkSize {
		chunk = maxChunkSize
	}
	if chunk < 1 {
		chunk = 1
	}
	return chunk
}
