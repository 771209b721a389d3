package localid

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureMintsOnceAndPersists(t *testing.T) {
	db := openTestDB(t)

	id1, err := Ensure(db)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := Ensure(db)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	got, err := Get(db)
	require.NoError(t, err)
	require.Equal(t, id1, got)
}

func TestGetErrorsWithoutMetadataTable(t *testing.T) {
	db := openTestDB(t)
	_, err := Get(db)
	require.Error(t, err)
}

func TestSecretName(t *testing.T) {
	require.Equal(t, SecretNamePrefix+"abc", SecretName("abc"))
}
