// Package records stores a sale together with its tick ledger entry under
// one key, so the pair is always written in a single store operation.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/repository/store"
)

const keyPrefix = "sales/"

var (
	// ErrNotFound indicates no sale exists for the id.
	ErrNotFound = errors.New("sale not found")
	// ErrAmbiguousID indicates a short id prefix matched several sales.
	ErrAmbiguousID = errors.New("ambiguous sale id")
)

// Repository reads and writes combined sale records.
type Repository struct {
	store store.Store
}

// New wraps a store.
func New(s store.Store) *Repository {
	return &Repository{store: s}
}

func key(id string) string { return keyPrefix + id }

// Get loads and validates the record for id.
func (r *Repository) Get(ctx context.Context, id string) (models.SaleRecord, error) {
	var rec models.SaleRecord
	found, err := r.store.Load(ctx, key(id), &rec)
	if err != nil {
		return models.SaleRecord{}, err
	}
	if !found {
		return models.SaleRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := rec.Validate(); err != nil {
		return models.SaleRecord{}, err
	}
	return rec, nil
}

// Put validates and writes the record in one Save.
func (r *Repository) Put(ctx context.Context, rec models.SaleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return r.store.Save(ctx, key(rec.Sale.ID), rec)
}

// List returns every record ordered by sale date, then creation time.
func (r *Repository) List(ctx context.Context) ([]models.SaleRecord, error) {
	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]models.SaleRecord, 0, len(keys))
	for _, k := range keys {
		var rec models.SaleRecord
		found, err := r.store.Load(ctx, k, &rec)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Sale, out[j].Sale
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

// Resolve expands an exact id or a unique id prefix, as typed in chat.
func (r *Repository) Resolve(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.ToLower(strings.TrimSpace(idOrPrefix))
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}

	keys, err := r.store.Keys(ctx, key(idOrPrefix))
	if err != nil {
		return "", err
	}

	switch len(keys) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return strings.TrimPrefix(keys[0], keyPrefix), nil
	}

	for _, k := range keys {
		if k == key(idOrPrefix) {
			return idOrPrefix, nil
		}
	}
	return "", fmt.Errorf("%w: %s matches %d sales", ErrAmbiguousID, idOrPrefix, len(keys))
}
