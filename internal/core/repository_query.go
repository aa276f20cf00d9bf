package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FindByID returns the patient with the given identifier. The identifier is
// trimmed and uppercased first. Returns ErrNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*Patient, error) {
	id = NormalizePatientID(id)
	p, err := r.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	return p, nil
}

// find looks up a normalized identifier. An empty one matches nothing.
func (r *Repository) find(ctx context.Context, id string) (*Patient, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return r.store.FindOne(ctx, Filter{PatientID: id})
}

// Search looks a term up as an identifier first, when it looks like one,
// then falls back to a case-insensitive substring match on the name. Name
// matches are capped at SearchLimit in store order. A blank term or no
// match is an empty result, not an error.
func (r *Repository) Search(ctx context.Context, term string) ([]Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Patient{}, nil
	}
	log := r.log(ctx)

	if IsPatientIDTerm(term) {
		p, err := r.store.FindOne(ctx, Filter{PatientID: NormalizePatientID(term)})
		switch {
		case err == nil:
			log.Debug("search matched identifier", "patient_id", p.PatientID)
			return []Patient{*p}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("search %q: %w", term, err)
		}
	}

	ps, err := r.store.FindMany(ctx, Filter{NameContains: term}, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	log.Debug("search matched names", "term", term, "matches", len(ps))
	return ps, nil
}

// List returns every stored patient in store order.
func (r *Repository) List(ctx context.Context) ([]Patient, error) {
	ps, err := r.store.FindMany(ctx, Filter{}, 0)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return ps, nil
}
