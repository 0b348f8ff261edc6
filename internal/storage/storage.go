package storage

import (
	"context"

	"lpValuer/internal/model"
)

// Sink receives valuation records.
type Sink interface {
	PutValuations(ctx context.Context, records []model.ValuationRecord) error
}

// Multi writes every batch to each sink in order and stops at the first
// failure.
type Multi []Sink

func (m Multi) PutValuations(ctx context.Context, records []model.ValuationRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutValuations(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
