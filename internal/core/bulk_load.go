package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BulkLoad replaces the store contents with rows. Row i is assigned
// OrdinalPatientID(i) and validated on its own; invalid rows are reported in
// the summary. Valid rows are inserted in batches of BatchSize input rows. A
// failing batch is logged and skipped, so the load is best effort. The final
// count is read back from the store.
//
// BulkLoad assumes it is the only writer for its duration. When the
// repository has a LoadGate, a concurrent load in the same process fails
// with ErrLoadInProgress.
func (r *Repository) BulkLoad(ctx context.Context, rows []RawRecord) (LoadSummary, error) {
	if r.gate != nil {
		if err := r.gate.Acquire(ctx); err != nil {
			return LoadSummary{}, err
		}
		defer r.gate.Release()
	}

	start := time.Now()
	summary := LoadSummary{
		LoadID: uuid.New().String(),
		Rows:   len(rows),
	}
	log := r.log(ctx).With("load_id", summary.LoadID)

	log.Info("bulk load started", "rows", len(rows), "batch_size", r.batchSize)

	if err := r.store.DropAll(ctx); err != nil {
		return summary, fmt.Errorf("clear store: %w", err)
	}

	for lo := 0; lo < len(rows); lo += r.batchSize {
		hi := min(lo+r.batchSize, len(rows))
		summary.Batches++

		batch := make([]Patient, 0, hi-lo)
		for i := lo; i < hi; i++ {
			id := OrdinalPatientID(i)
			p, err := r.validator.validate(rows[i], false)
			if err != nil {
				summary.Rejected = append(summary.Rejected, RowRejection{
					Line:      i + 1,
					PatientID: id,
					Reason:    err.Error(),
				})
				continue
			}
			p.PatientID = id
			batch = append(batch, *p)
		}
		summary.Valid += len(batch)

		if len(batch) == 0 {
			log.Warn("batch has no valid rows", "batch", summary.Batches)
			continue
		}

		inserted, failures, err := r.store.InsertMany(ctx, batch)
		if err != nil {
			log.Error("batch insert failed",
				"batch", summary.Batches,
				"rows", len(batch),
				"error", err,
			)
			if ctx.Err() != nil {
				return summary, fmt.Errorf("bulk load: %w", ctx.Err())
			}
			continue
		}
		for _, f := range failures {
			log.Warn("row not inserted",
				"batch", summary.Batches,
				"patient_id", f.PatientID,
				"error", f.Err,
			)
		}

		log.Info("batch inserted",
			"batch", summary.Batches,
			"inserted", inserted,
			"progress", fmt.Sprintf("%d/%d", hi, len(rows)),
		)
	}

	count, err := r.store.Count(ctx, Filter{})
	if err != nil {
		return summary, fmt.Errorf("count after load: %w", err)
	}
	summary.Count = count
	summary.Duration = time.Since(start)

	log.Info("bulk load finished",
		"valid", summary.Valid,
		"rejected", len(summary.Rejected),
		"batches", summary.Batches,
		"count", summary.Count,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}
