package aggregate

import (
	"context"

	"zuniswap/internal/storage/postgres"
)

// DBStateStore keeps progress in the aggregator_state table under Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (Progress, bool, error) {
	if s == nil || s.Store == nil {
		return Progress{}, false, nil
	}
	ts, window, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return Progress{}, ok, err
	}
	return Progress{Timestamp: ts, WindowSeconds: window}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, p Progress) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, p.Timestamp, p.WindowSeconds)
}
