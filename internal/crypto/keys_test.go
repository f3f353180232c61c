package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEd25519Key(t *testing.T) {
	privPEM, pubPEM, err := GenerateEd25519Key()
	require.NoError(t, err)

	priv, err := jwt.ParseEdPrivateKeyFromPEM(privPEM)
	require.NoError(t, err)
	pub, err := jwt.ParseEdPublicKeyFromPEM(pubPEM)
	require.NoError(t, err)

	edPriv, ok := priv.(ed25519.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, pub, edPriv.Public())

	msg := []byte("payload")
	assert.True(t, ed25519.Verify(pub.(ed25519.PublicKey), msg, ed25519.Sign(edPriv, msg)))

	otherPriv, _, err := GenerateEd25519Key()
	require.NoError(t, err)
	assert.NotEqual(t, privPEM, otherPriv)
}
