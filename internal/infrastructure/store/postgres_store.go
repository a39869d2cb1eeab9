package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PostgresBlobStore mirrors device blobs into PostgreSQL, one row per
// (device, key). Used when several kiosks share a database.
type PostgresBlobStore struct {
	db       *sql.DB
	deviceID string
}

func NewPostgresBlobStore(db *sql.DB, deviceID string) *PostgresBlobStore {
	return &PostgresBlobStore{
		db:       db,
		deviceID: deviceID,
	}
}

// EnsureSchema creates the device_carts table if it does not exist
func (ps *PostgresBlobStore) EnsureSchema(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS device_carts (
			device_id  TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (device_id, key)
		)`,
	)
	return err
}

// Get reads the blob for key
func (ps *PostgresBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := ps.db.QueryRowContext(ctx,
		"SELECT data FROM device_carts WHERE device_id = $1 AND key = $2",
		ps.deviceID, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put upserts the blob for key
func (ps *PostgresBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO device_carts (device_id, key, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (device_id, key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		ps.deviceID, key, data, time.Now(),
	)
	return err
}

// Delete removes the blob for key
func (ps *PostgresBlobStore) Delete(ctx context.Context, key string) error {
	_, err := ps.db.ExecContext(ctx,
		"DELETE FROM device_carts WHERE device_id = $1 AND key = $2",
		ps.deviceID, key,
	)
	return err
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// A single agent needs very few connections
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
