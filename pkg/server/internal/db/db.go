package db

import (
	"database/sql"
	"fmt"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary database tables
func createTables(db *sql.DB) error {
	// Used payment proofs; a proof verifies at most once for the lifetime
	// of this database.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS used_proofs (
			proof TEXT PRIMARY KEY,
			used_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Settlement journal: one row per outbound transfer attempt, for
	// operational reconciliation of oracle failures.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settlements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			account TEXT NOT NULL,
			amount INTEGER NOT NULL,
			kind TEXT NOT NULL,
			transfer_ref TEXT,
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account TEXT NOT NULL,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	return nil
}

// MarkProofUsed records a payment proof and reports whether this call was the
// first to do so.
func (db *DB) MarkProofUsed(proofRef string) (bool, error) {
	res, err := db.Exec(`INSERT OR IGNORE INTO used_proofs (proof) VALUES (?)`, proofRef)
	if err != nil {
		return false, fmt.Errorf("failed to record proof: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordSettlement journals one outbound transfer attempt. transferRef is
// empty when the transfer failed; errMsg is empty when it succeeded.
func (db *DB) RecordSettlement(roomID, account string, amount int64, kind, transferRef, errMsg string) error {
	_, err := db.Exec(`
		INSERT INTO settlements (room_id, account, amount, kind, transfer_ref, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, roomID, account, amount, kind, transferRef, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %v", err)
	}
	return nil
}

// RecordTransaction appends a row to a player's transaction history.
func (db *DB) RecordTransaction(account string, amount int64, transactionType, description string) error {
	_, err := db.Exec(`
		INSERT INTO transactions (account, amount, type, description)
		VALUES (?, ?, ?, ?)
	`, account, amount, transactionType, description)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %v", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
