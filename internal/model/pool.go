package model

// Pool is the registry record for one deployed exchange.
type Pool struct {
	Address      string `json:"address"`
	Token        string `json:"token"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
	FirstSeenTS  uint64 `json:"first_seen_ts"`
}
