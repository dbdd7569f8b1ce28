package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		pool_address   TEXT PRIMARY KEY,
		token_address  TEXT NOT NULL,
		name           TEXT NOT NULL DEFAULT '',
		symbol         TEXT NOT NULL DEFAULT '',
		first_seen_seq BIGINT NOT NULL,
		first_seen_ts  BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pool_events (
		pool_address  TEXT NOT NULL,
		seq           BIGINT NOT NULL,
		kind          TEXT NOT NULL,
		actor         TEXT NOT NULL,
		token_address TEXT NOT NULL,
		base_in       NUMERIC(78,0) NOT NULL,
		base_out      NUMERIC(78,0) NOT NULL,
		token_in      NUMERIC(78,0) NOT NULL,
		token_out     NUMERIC(78,0) NOT NULL,
		shares        NUMERIC(78,0) NOT NULL,
		base_reserve  NUMERIC(78,0) NOT NULL,
		token_reserve NUMERIC(78,0) NOT NULL,
		total_shares  NUMERIC(78,0) NOT NULL,
		event_ts      TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (pool_address, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_window_metrics (
		pool_address        TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts     TIMESTAMPTZ NOT NULL,
		window_end_ts       TIMESTAMPTZ NOT NULL,
		swap_count          BIGINT NOT NULL,
		deposit_count       BIGINT NOT NULL,
		withdraw_count      BIGINT NOT NULL,
		volume_base         NUMERIC NOT NULL,
		volume_token        NUMERIC NOT NULL,
		fee_base            NUMERIC NOT NULL,
		fee_token           NUMERIC NOT NULL,
		fee_rate_base       NUMERIC,
		fee_rate_token      NUMERIC,
		tvl_base            NUMERIC,
		tvl_token           NUMERIC,
		price               NUMERIC,
		apr                 NUMERIC,
		fee_method          TEXT NOT NULL,
		tvl_method          TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregator_state (
		name              TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		window_seconds    BIGINT NOT NULL DEFAULT 0,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
}
