// Package chunkstore is the durable receive-side chunk store of §3/§6: an
// append-only composite-key (transfer_id, chunk_index) → decrypted chunk
// bytes store, with a secondary index on transfer_id. Grounded on the
// teacher's internal/miror.WALImpl — same sync.Mutex-guarded *sql.DB, same
// composite-key table shape, same cleanup-by-owning-key method.
package chunkstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a (transfer_id, chunk_index) pair has no row.
var ErrNotFound = errors.New("chunkstore: chunk not found")

// Store is the durable chunk store. Only the receiver side persists chunks
// (§3: "Required for receive-side; sender does not persist").
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens a chunk store at path, creating its schema if
// needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("chunkstore: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("chunkstore: open database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("chunkstore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			transfer_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			data BLOB NOT NULL,
			received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (transfer_id, chunk_index)
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_transfer_id ON chunks(transfer_id)`)
	return err
}

// Put writes (or overwrites — §4.6 step 3: "Duplicate chunk_index
// overwrites, idempotent") one chunk's decrypted bytes.
func (s *Store) Put(transferID string, chunkIndex uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO chunks (transfer_id, chunk_index, data) VALUES (?, ?, ?)",
		transferID, chunkIndex, data,
	)
	if err != nil {
		return fmt.Errorf("chunkstore: put chunk: %w", err)
	}
	return nil
}

// Get reads one chunk's bytes.
func (s *Store) Get(transferID string, chunkIndex uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM chunks WHERE transfer_id = ? AND chunk_index = ?",
		transferID, chunkIndex,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chunkstore: get chunk: %w", err)
	}
	return data, nil
}

// AllOrdered returns every chunk for transferID concatenated in
// chunk_index order, for assembly (§4.6 step 5).
func (s *Store) AllOrdered(transferID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		"SELECT data FROM chunks WHERE transfer_id = ? ORDER BY chunk_index ASC",
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: query chunks: %w", err)
	}
	defer rows.Close()

	var out []byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("chunkstore: scan chunk: %w", err)
		}
		out = append(out, data...)
	}
	return out, rows.Err()
}

// DeleteTransfer removes every chunk for transferID (invariant 6: "all
// durable chunks for its transfers are deleted" on reset, and §4.6's
// post-assembly/reject/cancel/error cleanup).
func (s *Store) DeleteTransfer(transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM chunks WHERE transfer_id = ?", transferID)
	if err != nil {
		return fmt.Errorf("chunkstore: delete transfer: %w", err)
	}
	return nil
}

// DeleteOrphaned removes every chunk whose transfer_id is not in liveIDs —
// the janitor's crash-recovery sweep (SPEC_FULL.md §9 expansion).
func (s *Store) DeleteOrphaned(liveIDs map[string]bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT DISTINCT transfer_id FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("chunkstore: list transfer ids: %w", err)
	}
	var orphaned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("chunkstore: scan transfer id: %w", err)
		}
		if !liveIDs[id] {
			orphaned = append(orphaned, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var total int64
	for _, id := range orphaned {
		res, err := s.db.Exec("DELETE FROM chunks WHERE transfer_id = ?", id)
		if err != nil {
			return total, fmt.Errorf("chunkstore: delete orphaned transfer %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// ListTransfers returns the distinct transfer_ids with chunks on disk, for
// CLI inspection.
func (s *Store) ListTransfers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT DISTINCT transfer_id FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("chunkstore: list transfer ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("chunkstore: scan transfer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
