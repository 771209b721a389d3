// Package localid manages the vault's own persistent UUID, stored in the
// vault database's metadata table (§3 "Persistence surface"). This is
// purely local bookkeeping — it identifies the vault file across restarts,
// it is not a cryptographic identity.
package localid

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const (
	// MetadataTable is the table that stores vault metadata.
	MetadataTable = "metadata"

	// VaultIDKey is the metadata key the vault UUID is stored under.
	VaultIDKey = "vault_uuid"

	// SecretNamePrefix namespaces this vault's secretstore entry.
	SecretNamePrefix = "helix_vault_"
)

// Generate returns a fresh vault UUID.
func Generate() string { return uuid.New().String() }

// SecretName derives the secretstore entry name for a vault ID.
func SecretName(vaultID string) string { return SecretNamePrefix + vaultID }

// Get reads the vault UUID from the metadata table.
func Get(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow("SELECT value FROM metadata WHERE key = ?", VaultIDKey).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("localid: vault UUID not set")
		}
		return "", fmt.Errorf("localid: query vault UUID: %w", err)
	}
	return id, nil
}

// Ensure returns the vault's UUID, minting and storing one if absent.
func Ensure(db *sql.DB) (string, error) {
	id, err := Get(db)
	if err == nil {
		return id, nil
	}
	id = Generate()
	if _, err := db.Exec("INSERT INTO metadata (key, value) VALUES (?, ?)", VaultIDKey, id); err != nil {
		return "", fmt.Errorf("localid: store vault UUID: %w", err)
	}
	return id, nil
}
