package model

import (
	"testing"
)

func TestTokenRegistryResolve(t *testing.T) {
	registry, err := NewTokenRegistry(map[string]string{
		"0x1000000000000000000000000000000000000001": "vex",
		"0x1000000000000000000000000000000000000002": "SVEX",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := registry.Resolve("0x1000000000000000000000000000000000000001"); got != TokenVEX {
		t.Fatalf("resolve mismatch: %s", got)
	}
	// Lookup is case-insensitive and type names are normalized.
	if got := registry.Resolve("0x1000000000000000000000000000000000000002"); got != TokenSVEX {
		t.Fatalf("resolve mismatch: %s", got)
	}
	// Unknown contracts fall back to the primary token.
	if got := registry.Resolve("0x0000000000000000000000000000000000000dead"); got != PrimaryToken {
		t.Fatalf("fallback mismatch: %s", got)
	}
}

func TestTokenRegistryRejectsUnknownType(t *testing.T) {
	_, err := NewTokenRegistry(map[string]string{
		"0x1000000000000000000000000000000000000001": "doge",
	})
	if err == nil {
		t.Fatalf("expected error for unknown token type")
	}
}

func TestMergeStatusForwardOnly(t *testing.T) {
	cases := []struct {
		current  TransferStatus
		observed TransferStatus
		want     TransferStatus
	}{
		{TransferPending, TransferConfirmed, TransferConfirmed},
		{TransferPending, TransferFailed, TransferFailed},
		{TransferConfirmed, TransferPending, TransferConfirmed},
		{TransferFailed, TransferPending, TransferFailed},
		{TransferConfirmed, TransferConfirmed, TransferConfirmed},
		{TransferPending, TransferPending, TransferPending},
	}

	for _, tc := range cases {
		if got := MergeStatus(tc.current, tc.observed); got != tc.want {
			t.Fatalf("merge %s+%s: got %s, want %s", tc.current, tc.observed, got, tc.want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	normalized, ok := NormalizeAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	if !ok {
		t.Fatalf("expected valid address")
	}
	if normalized != "0xab5801a7d398351b8be11c439e05c5b3259aec9b" {
		t.Fatalf("normalize mismatch: %s", normalized)
	}

	if _, ok := NormalizeAddress("not-an-address"); ok {
		t.Fatalf("expected invalid address")
	}
	if _, ok := NormalizeAddress(""); ok {
		t.Fatalf("expected invalid address")
	}
}
