package model

import "encoding/json"

// Event kinds emitted by the exchange pool.
const (
	EventAddLiquidity     = "add_liquidity"
	EventRemoveLiquidity  = "remove_liquidity"
	EventSwapBaseForToken = "swap_base_for_token"
	EventSwapTokenForBase = "swap_token_for_base"
)

// PoolEvent records one committed pool operation. Amounts are base-10 integer
// strings in 18-decimal fixed point; reserves are the values after the
// operation.
type PoolEvent struct {
	Pool         string `json:"pool"`
	Token        string `json:"token"`
	Seq          uint64 `json:"seq"`
	Kind         string `json:"kind"`
	Actor        string `json:"actor"`
	BaseIn       string `json:"base_in"`
	BaseOut      string `json:"base_out"`
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
	Shares       string `json:"shares"`
	BaseReserve  string `json:"base_reserve"`
	TokenReserve string `json:"token_reserve"`
	TotalShares  string `json:"total_shares"`
	Timestamp    uint64 `json:"timestamp"`
}

// IsSwap reports whether the event moved value through the pricing curve.
func (e PoolEvent) IsSwap() bool {
	return e.Kind == EventSwapBaseForToken || e.Kind == EventSwapTokenForBase
}

// UnmarshalJSON decodes a PoolEvent and rejects lines without a kind.
func (e *PoolEvent) UnmarshalJSON(data []byte) error {
	type Alias PoolEvent
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Kind == "" {
		return errMissingKind
	}
	*e = PoolEvent(a)
	return nil
}
