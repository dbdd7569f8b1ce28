package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"zuniswap/internal/model"
	"zuniswap/internal/storage"
)

const (
	feeMethodInput  = "input_fee_1pct"
	tvlMethodClose  = "reserves_at_window_close"
	tvlMethodNone   = "unavailable"
	defaultBatchLen = 1000
)

// MetricsStore receives pool registry records and window metrics.
type MetricsStore interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates pool events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Summary counts what a run processed.
type Summary struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Run executes aggregation over a pool events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Summary, error) {
	var sum Summary
	if a.store == nil {
		return sum, fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return sum, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = defaultBatchLen
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return sum, err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 16)
	maxTs := startTs

	err = storage.ReadEvents(inputPath, func(lineNo int, event model.PoolEvent, decodeErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Total++
		if decodeErr != nil {
			sum.Failed++
			a.logger.Warn("decode pool event", zap.Int("line", lineNo), zap.Error(decodeErr))
			return nil
		}

		if event.Timestamp <= startTs {
			sum.Skipped++
			return nil
		}

		windowStart := windowStart(event.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(event.Pool)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(event, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(acc)
			batch = append(batch, metrics)
			sum.Windows++
			if pool != nil {
				pools = append(pools, *pool)
			}
			acc = NewAccumulator(event, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(event); err != nil {
			sum.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", event.Pool), zap.String("kind", event.Kind))
			return nil
		}

		if event.Timestamp > maxTs {
			maxTs = event.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return sum, err
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(acc)
		batch = append(batch, metrics)
		sum.Windows++
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return sum, err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return sum, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", sum.Total),
		zap.Int("windows", sum.Windows),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)

	return sum, nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	prog, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if prog.WindowSeconds != 0 && prog.WindowSeconds != a.cfg.WindowSeconds {
		return 0, fmt.Errorf("%w: saved %ds, configured %ds", ErrWindowMismatch, prog.WindowSeconds, a.cfg.WindowSeconds)
	}
	return prog.Timestamp, nil
}

// saveState records the start of the oldest still-open window minus one, so a
// rerun replays every event of windows that were not flushed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	safeTs := a.cfg.RecomputeFrom
	if len(a.accumulators) > 0 {
		if open := minOpenWindowStart(a.accumulators); open > 0 {
			safeTs = open - 1
		}
	}
	return a.cfg.StateStore.Save(ctx, Progress{Timestamp: safeTs, WindowSeconds: a.cfg.WindowSeconds})
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (model.PoolWindowMetrics, *model.Pool) {
	poolRecord := a.registerPool(acc)

	var tvlBase, tvlToken *string
	tvlMethod := tvlMethodNone
	if acc.BaseReserve.Sign() > 0 && acc.TokenReserve.Sign() > 0 {
		b := formatTokenAmount(acc.BaseReserve)
		t := formatTokenAmount(acc.TokenReserve)
		tvlBase, tvlToken = &b, &t
		tvlMethod = tvlMethodClose
	}

	feeRateBase, feeRateToken := computeFeeRates(acc.FeeBase, acc.FeeToken, acc.BaseReserve, acc.TokenReserve)

	return model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeBase:     formatTokenAmount(acc.VolumeBase),
		VolumeToken:    formatTokenAmount(acc.VolumeToken),
		FeeBase:        formatTokenAmount(acc.FeeBase),
		FeeToken:       formatTokenAmount(acc.FeeToken),
		FeeRateBase:    feeRateBase,
		FeeRateToken:   feeRateToken,
		TVLBase:        tvlBase,
		TVLToken:       tvlToken,
		Price:          computePrice(acc.BaseReserve, acc.TokenReserve),
		APR:            computeAPR(acc.FeeBase, acc.FeeToken, acc.BaseReserve, acc.TokenReserve, a.cfg.WindowSeconds),
		FeeMethod:      feeMethodInput,
		TVLMethod:      tvlMethod,
	}, poolRecord
}

func (a *Aggregator) registerPool(acc *Accumulator) *model.Pool {
	key := poolKey(acc.PoolAddress)
	pool := model.Pool{
		Address:      acc.PoolAddress,
		Token:        acc.Token,
		FirstSeenSeq: acc.FirstSeq,
		FirstSeenTS:  acc.FirstTS,
	}

	existing, ok := a.poolSeen[key]
	if ok {
		if existing.FirstSeenSeq <= pool.FirstSeenSeq {
			return nil
		}
	}

	a.poolSeen[key] = pool
	return &pool
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
