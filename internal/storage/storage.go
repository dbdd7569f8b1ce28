package storage

import (
	"errors"

	"zuniswap/internal/model"
)

// EventSink is a destination for committed pool events.
type EventSink interface {
	PutEvents(events []model.PoolEvent) error
}

// MultiSink fans a batch out to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) PutEvents(events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
