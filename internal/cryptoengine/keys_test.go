package cryptoengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPairExportImportRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	spki, err := ExportSPKI(kp.Public)
	require.NoError(t, err)
	assert.NotEmpty(t, spki)

	imported, err := ImportSPKI(spki)
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(imported))
}

func TestSharedSecretAgreement(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	zAlice, err := SharedSecret(alice.Private, bob.Public)
	require.NoError(t, err)
	zBob, err := SharedSecret(bob.Private, alice.Public)
	require.NoError(t, err)

	assert.Equal(t, zAlice, zBob)

	keyAlice, err := DeriveSessionKey(zAlice)
	require.NoError(t, err)
	keyBob, err := DeriveSessionKey(zBob)
	require.NoError(t, err)
	assert.Equal(t, keyAlice, keyBob)
	assert.Len(t, keyAlice, SessionKeySize)
}

func TestDeriveSASIsOrderIndependent(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	spkiAlice, err := ExportSPKI(alice.Public)
	require.NoError(t, err)
	spkiBob, err := ExportSPKI(bob.Public)
	require.NoError(t, err)

	sasFromAlice := DeriveSAS(spkiAlice, spkiBob)
	sasFromBob := DeriveSAS(spkiBob, spkiAlice)

	assert.Equal(t, sasFromAlice, sasFromBob)
	assert.Len(t, sasFromAlice, 6)
}

func TestImportSPKIRejectsGarbage(t *testing.T) {
	_, err := ImportSPKI("not-valid-base64-der!!")
	assert.Error(t, err)
}
