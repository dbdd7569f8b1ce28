package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zuniswap/internal/model"
)

const defaultWriteTimeout = 30 * time.Second

// Store provides Postgres persistence for pool events and metrics.
type Store struct {
	pool         *pgxpool.Pool
	writeTimeout time.Duration
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, writeTimeout: defaultWriteTimeout}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables used by the store when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// PutEvents lets the store act as an event sink for the simulator.
func (s *Store) PutEvents(events []model.PoolEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	return s.InsertEvents(ctx, events)
}

// InsertEvents stores pool events. Re-inserting the same pool and sequence
// number is a no-op.
func (s *Store) InsertEvents(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO pool_events (
				pool_address, seq, kind, actor, token_address,
				base_in, base_out, token_in, token_out, shares,
				base_reserve, token_reserve, total_shares, event_ts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
			ON CONFLICT (pool_address, seq) DO NOTHING
		`,
			e.Pool,
			int64(e.Seq),
			e.Kind,
			e.Actor,
			e.Token,
			e.BaseIn,
			e.BaseOut,
			e.TokenIn,
			e.TokenOut,
			e.Shares,
			e.BaseReserve,
			e.TokenReserve,
			e.TotalShares,
			time.Unix(int64(e.Timestamp), 0).UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert pool event: %w", err)
		}
	}
	return nil
}

// UpsertPools inserts or updates pool registry records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_address, name, symbol, first_seen_seq, first_seen_ts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				token_address = EXCLUDED.token_address,
				name = COALESCE(NULLIF(EXCLUDED.name, ''), pools.name),
				symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), pools.symbol),
				first_seen_seq = LEAST(pools.first_seen_seq, EXCLUDED.first_seen_seq),
				first_seen_ts = LEAST(pools.first_seen_ts, EXCLUDED.first_seen_ts),
				updated_at = now()
		`,
			pool.Address,
			pool.Token,
			pool.Name,
			pool.Symbol,
			int64(pool.FirstSeenSeq),
			int64(pool.FirstSeenTS),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count,
				volume_base, volume_token, fee_base, fee_token, fee_rate_base, fee_rate_token,
				tvl_base, tvl_token, price, apr, fee_method, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_base = EXCLUDED.volume_base,
				volume_token = EXCLUDED.volume_token,
				fee_base = EXCLUDED.fee_base,
				fee_token = EXCLUDED.fee_token,
				fee_rate_base = EXCLUDED.fee_rate_base,
				fee_rate_token = EXCLUDED.fee_rate_token,
				tvl_base = EXCLUDED.tvl_base,
				tvl_token = EXCLUDED.tvl_token,
				price = EXCLUDED.price,
				apr = EXCLUDED.apr,
				fee_method = EXCLUDED.fee_method,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeBase,
			m.VolumeToken,
			m.FeeBase,
			m.FeeToken,
			m.FeeRateBase,
			m.FeeRateToken,
			m.TVLBase,
			m.TVLToken,
			m.Price,
			m.APR,
			m.FeeMethod,
			m.TVLMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the saved resume timestamp and window size for name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, uint64, bool, error) {
	if name == "" {
		return 0, 0, false, fmt.Errorf("state name required")
	}
	var ts, window int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts, window_seconds FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts, &window); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("load state %s: %w", name, err)
	}
	return uint64(ts), uint64(window), true, nil
}

// SaveState upserts the resume point for name.
func (s *Store) SaveState(ctx context.Context, name string, ts, windowSeconds uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, window_seconds, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts,
		    window_seconds = EXCLUDED.window_seconds,
		    updated_at = now()
	`, name, int64(ts), int64(windowSeconds))
	if err != nil {
		return fmt.Errorf("save state %s: %w", name, err)
	}
	return nil
}
