// Package cliutil provides the small file-I/O-adjacent helpers the
// solver's core deliberately excludes: hex codecs, range-argument
// parsing, and progress formatting. Mirrors Utils.cpp/Utils.hpp from
// the original implementation.
package cliutil

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ParseRange parses a CLI range endpoint as hex (with or without a 0x
// prefix) or decimal, per spec.md §6.1. An explicit 0x/0X prefix always
// selects hex, matching set_str(s, 0)'s auto-base behavior in the
// original implementation; without a prefix, a value is only treated
// as hex when it contains a letter digit (otherwise decimal wins).
func ParseRange(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	hasPrefix := strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if hasPrefix || looksHex(trimmed) {
		if v, ok := new(big.Int).SetString(trimmed, 16); ok {
			return v, nil
		}
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cliutil: invalid range value %q", s)
}

func looksHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return strings.ContainsAny(s, "abcdefABCDEF")
}

// HexToBytes decodes a hex string, tolerating a 0x/0X prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// BytesToHex encodes bytes as lower-case hex without a prefix.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FormatDuration renders a duration the way a long-running CLI reports
// elapsed time: hours:minutes:seconds.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ProgressLine formats a single status line: percentage complete, rate
// in jumps/sec, and estimated time remaining (or "unknown").
func ProgressLine(totalJumps uint64, expectedOps float64, opsPerSec float64, eta time.Duration, etaKnown bool) string {
	pct := 0.0
	if expectedOps > 0 {
		pct = float64(totalJumps) / expectedOps * 100
		if pct > 100 {
			pct = 100
		}
	}
	etaStr := "unknown"
	if etaKnown {
		etaStr = FormatDuration(eta)
	}
	return fmt.Sprintf("%.2f%% | %d jumps | %.0f jumps/sec | ETA %s", pct, totalJumps, opsPerSec, etaStr)
}
