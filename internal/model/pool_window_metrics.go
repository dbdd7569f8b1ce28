package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	DepositCount   uint64
	WithdrawCount  uint64
	VolumeBase     string
	VolumeToken    string
	FeeBase        string
	FeeToken       string
	FeeRateBase    *string
	FeeRateToken   *string
	TVLBase        *string
	TVLToken       *string
	Price          *string
	APR            *string
	FeeMethod      string
	TVLMethod      string
}
