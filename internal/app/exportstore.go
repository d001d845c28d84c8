package app

import (
	"context"
	"encoding/json"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/export"
)

// exportStore adapts the property store to the export package's narrower
// data interface.
type exportStore struct {
	store dataStore
}

func NewExportStore(dataStore dataStore) export.DataStore {
	return &exportStore{store: dataStore}
}

func (s *exportStore) GetProperty(ctx context.Context, id string) (export.PropertyInfo, error) {
	prop, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return export.PropertyInfo{}, err
	}
	return export.PropertyInfo{
		ID:         prop.ID,
		Address:    prop.Address,
		PostalCode: prop.PostalCode,
		City:       prop.City,
		Stage:      prop.Stage,
	}, nil
}

func (s *exportStore) LoadReviewState(ctx context.Context, id string) ([]byte, error) {
	blob, err := s.store.LoadReviewState(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(blob), nil
}
