package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPoolEventJSONRoundTrip(t *testing.T) {
	original := PoolEvent{
		Pool:         "0x00000000000000000000000000000000000e8c00",
		Token:        "0x0000000000000000000000000000000000007e57",
		Seq:          3,
		Kind:         EventSwapBaseForToken,
		Actor:        "0x00000000000000000000000000000000000a11ce",
		BaseIn:       "1000000000000000000",
		BaseOut:      "0",
		TokenIn:      "0",
		TokenOut:     "1978041738678708079",
		Shares:       "0",
		BaseReserve:  "1001000000000000000000",
		TokenReserve: "1998021958261321291921",
		TotalShares:  "1000000000000000000000",
		Timestamp:    1700000000,
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded PoolEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
	if !decoded.IsSwap() {
		t.Fatalf("expected swap event")
	}
}

func TestPoolEventRejectsMissingKind(t *testing.T) {
	var decoded PoolEvent
	if err := json.Unmarshal([]byte(`{"pool":"0x01","seq":1}`), &decoded); err == nil {
		t.Fatalf("expected error for missing kind")
	}
}
