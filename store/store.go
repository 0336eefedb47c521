package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyProcessed is returned when an order for the given
	// merchant_oid has already been created by a previous webhook delivery
	ErrAlreadyProcessed = errors.New("payment already processed")
)

// Store handles persistent storage of products, checkout sessions and orders
type Store struct {
	db   *sql.DB
	path string
}

// New creates a new SQLite-backed store
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// SQLite connection string with multi-process optimizations
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS products (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)
	);

	CREATE TABLE IF NOT EXISTS product_colors (
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		color_id   TEXT NOT NULL,
		color      TEXT NOT NULL,
		stock      INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		PRIMARY KEY (product_id, color_id)
	);

	CREATE TABLE IF NOT EXISTS checkout_sessions (
		merchant_oid    TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		user_name       TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL,
		provider        TEXT NOT NULL,
		payment_method  TEXT NOT NULL DEFAULT '',
		items_price     REAL NOT NULL,
		tax_amount      REAL NOT NULL DEFAULT 0,
		shipping_amount REAL NOT NULL DEFAULT 0,
		total_amount    REAL NOT NULL,
		basket_json     TEXT NOT NULL,
		shipping_json   TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orders (
		id              TEXT PRIMARY KEY,
		merchant_oid    TEXT NOT NULL UNIQUE,
		user_id         TEXT NOT NULL,
		items_price     REAL NOT NULL,
		tax_amount      REAL NOT NULL DEFAULT 0,
		shipping_amount REAL NOT NULL DEFAULT 0,
		total_amount    REAL NOT NULL,
		payment_id      TEXT NOT NULL DEFAULT '',
		payment_status  TEXT NOT NULL DEFAULT '',
		payment_method  TEXT NOT NULL DEFAULT '',
		shipping_json   TEXT NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		price      REAL NOT NULL,
		amount     INTEGER NOT NULL,
		image      TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS order_item_colors (
		order_item_id INTEGER NOT NULL REFERENCES order_items(id) ON DELETE CASCADE,
		color_id      TEXT NOT NULL,
		color         TEXT NOT NULL,
		amount        INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON checkout_sessions(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *Store) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
