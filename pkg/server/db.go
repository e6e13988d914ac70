package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stakematch/stakematch/pkg/server/internal/db"
)

// Database defines the interface for database operations
type Database interface {
	// MarkProofUsed records a payment proof and reports whether this call
	// was the first to do so. Satisfies payment.ProofStore.
	MarkProofUsed(proofRef string) (bool, error)

	// RecordSettlement journals one outbound transfer attempt per room.
	RecordSettlement(roomID, account string, amount int64, kind, transferRef, errMsg string) error

	// RecordTransaction appends a row to a player's transaction history.
	RecordTransaction(account string, amount int64, transactionType, description string) error

	// Close closes the database connection
	Close() error
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (Database, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	// Create the database
	return db.NewDB(dbPath)
}
