package core

import (
	"context"
	"errors"
	"fmt"
)

// Add validates raw and inserts it. A patient_id is allocated unless raw
// supplies one. Losing an allocation race surfaces as ErrDuplicateIdentifier,
// which the caller may retry.
func (r *Repository) Add(ctx context.Context, raw RawRecord) (AddResult, error) {
	log := r.log(ctx)

	p, err := r.validator.Validate(raw)
	if err != nil {
		log.Info("patient rejected", "field", RejectedField(err), "error", err)
		return AddResult{}, err
	}

	if p.PatientID == "" {
		id, err := r.allocator.Next(ctx)
		if err != nil {
			return AddResult{}, fmt.Errorf("allocate patient_id: %w", err)
		}
		p.PatientID = id
	}

	if err := r.store.InsertOne(ctx, *p); err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			log.Warn("patient_id already taken", "patient_id", p.PatientID)
		}
		return AddResult{}, fmt.Errorf("insert %s: %w", p.PatientID, err)
	}

	log.Info("patient added", "patient_id", p.PatientID, "name", p.Name)
	return AddResult{PatientID: p.PatientID, Name: p.Name}, nil
}

// Update validates raw as a partial update and applies it to the patient
// with the given identifier. The first failing field aborts the update with
// nothing written. An update that leaves the record unchanged reports
// UpdateNoOp.
func (r *Repository) Update(ctx context.Context, id string, raw RawRecord) (UpdateResult, error) {
	id = NormalizePatientID(id)
	log := r.log(ctx)

	if _, err := r.find(ctx, id); err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
	}

	patch, err := r.validator.ValidatePatch(raw)
	if err != nil {
		log.Info("update rejected", "patient_id", id, "field", RejectedField(err), "error", err)
		return UpdateResult{}, err
	}

	modified, err := r.store.UpdateOne(ctx, id, patch)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", id, err)
	}

	result := UpdateResult{
		PatientID: id,
		Outcome:   UpdateApplied,
		Fields:    patch.FieldNames(),
	}
	if modified == 0 {
		result.Outcome = UpdateNoOp
	}

	log.Info("patient updated",
		"patient_id", id,
		"fields", result.Fields,
		"outcome", result.Outcome,
	)
	return result, nil
}

// Delete removes the patient with the given identifier. Returns ErrNotFound,
// without touching the store, when there is no such patient.
func (r *Repository) Delete(ctx context.Context, id string) error {
	id = NormalizePatientID(id)

	p, err := r.find(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	n, err := r.store.DeleteOne(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		// removed by someone else between lookup and delete
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	r.log(ctx).Warn("patient deleted", "patient_id", id, "name", p.Name)
	return nil
}
