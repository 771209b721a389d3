// Package vault persists local convenience state across restarts: the last
// registered identifier and the vault's own UUID (§3 "Persistence surface").
// It is explicitly not a store for session_key material or a long-term
// identity key — both are excluded by the handshake's Non-goals.
//
// Adapted from the teacher's dao.SecureVaultDAO + migrations.BootstrapVault:
// a SQLite-backed key/value table, encrypted at rest under a master key
// pulled from internal/secretstore.
package vault

import (
	"database/sql"
	"fmt"

	"github.com/n1/helix/internal/crypto"
	"github.com/n1/helix/internal/dao"
	"github.com/n1/helix/internal/localid"
	"github.com/n1/helix/internal/migrations"
	"github.com/n1/helix/internal/secretstore"
	"github.com/n1/helix/internal/sqlite"
)

const lastIdentifierKey = "last_identifier"

const masterKeySize = 32

// Vault is a local, encrypted key/value store keyed by the vault's own UUID.
type Vault struct {
	db     *sql.DB
	secure *dao.SecureVaultDAO
	id     string
}

// Open opens (creating if absent) the vault database at path, ensuring its
// schema, UUID, and master key all exist.
func Open(path string) (*Vault, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vault: open db: %w", err)
	}
	if err := migrations.BootstrapVault(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: bootstrap schema: %w", err)
	}
	vaultID, err := localid.Ensure(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: ensure vault id: %w", err)
	}
	masterKey, err := ensureMasterKey(vaultID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("vault: ensure master key: %w", err)
	}
	return &Vault{
		db:     db,
		secure: dao.NewSecureVaultDAO(db, masterKey),
		id:     vaultID,
	}, nil
}

func ensureMasterKey(vaultID string) ([]byte, error) {
	name := localid.SecretName(vaultID)
	key, err := secretstore.Default.Get(name)
	if err == nil && len(key) == masterKeySize {
		return key, nil
	}
	key, err = crypto.Generate(masterKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := secretstore.Default.Put(name, key); err != nil {
		return nil, fmt.Errorf("store master key in secretstore: %w", err)
	}
	return key, nil
}

// ID returns the vault's persistent UUID.
func (v *Vault) ID() string { return v.id }

// LastIdentifier returns the identifier last registered from this vault, or
// "" if none has been registered yet.
func (v *Vault) LastIdentifier() (string, error) {
	plaintext, err := v.secure.Get(lastIdentifierKey)
	if err != nil {
		if err == dao.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("vault: read last identifier: %w", err)
	}
	return string(plaintext), nil
}

// SetLastIdentifier records the identifier used for the most recent
// successful registration.
func (v *Vault) SetLastIdentifier(identifier string) error {
	if err := v.secure.Put(lastIdentifierKey, []byte(identifier)); err != nil {
		return fmt.Errorf("vault: write last identifier: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (v *Vault) Close() error { return v.db.Close() }
