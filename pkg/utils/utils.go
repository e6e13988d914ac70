package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrutil/v4"
)

// FormatAmount renders an atom amount in coin units for logs and messages.
func FormatAmount(atoms int64) string {
	return dcrutil.Amount(atoms).String()
}

// ParseCoinAmount converts a coin-unit wire value (e.g. a bet amount from a
// client) into atoms, rejecting non-positive values.
func ParseCoinAmount(coins float64) (int64, error) {
	amt, err := dcrutil.NewAmount(coins)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %v: %w", coins, err)
	}
	if amt <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", coins)
	}
	return int64(amt), nil
}

// AtomsToCoins converts an atom amount to coin units for the wire.
func AtomsToCoins(atoms int64) float64 {
	return dcrutil.Amount(atoms).ToCoin()
}

// EnsureDataDirExists creates the datadir and necessary subdirectories if they don't exist
func EnsureDataDirExists(datadir string) error {
	// Create main datadir
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return fmt.Errorf("failed to create datadir %s: %v", datadir, err)
	}

	// Create logs subdirectory
	logsDir := filepath.Join(datadir, "logs")
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return fmt.Errorf("failed to create logs directory %s: %v", logsDir, err)
	}

	return nil
}
