package store

import (
	"fmt"
	"time"
)

// Key is a named private key persisted in the database.
type Key struct {
	Name       string
	PrivateKey []byte
	CreatedAt  time.Time
}

// PutKey inserts or replaces the key stored under name.
func (s *DB) PutKey(name string, privateKey []byte) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO keys (name, private_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   private_key = excluded.private_key,
		   updated_at = excluded.updated_at`,
		name, privateKey, now, now,
	)
	if err != nil {
		return fmt.Errorf("put key %s: %w", name, err)
	}
	return nil
}

// Keys returns all stored keys in creation order.
func (s *DB) Keys() ([]Key, error) {
	rows, err := s.db.Query(`SELECT name, private_key, created_at FROM keys ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Name, &k.PrivateKey, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
