package coinbase

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func TestParseECPrivateKey_Formats(t *testing.T) {
	key, sec1 := newTestKey(t)

	got, err := ParseECPrivateKey(sec1)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	escaped := strings.ReplaceAll(sec1, "\n", `\n`)
	got, err = ParseECPrivateKey(escaped)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	got, err = ParseECPrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))
}

func TestParseECPrivateKey_Rejects(t *testing.T) {
	_, err := ParseECPrivateKey("not a key")
	assert.Error(t, err)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	_, err = ParseECPrivateKey(string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})))
	assert.ErrorContains(t, err, "expected ECDSA")

	_, err = ParseECPrivateKey(string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}})))
	assert.ErrorContains(t, err, "unsupported key type")
}

func TestNewSigner_RequiresKeyName(t *testing.T) {
	_, pemKey := newTestKey(t)
	_, err := NewSigner("", pemKey)
	assert.Error(t, err)
}

func TestSigner_RESTToken(t *testing.T) {
	key, pemKey := newTestKey(t)
	s, err := NewSigner("organizations/org/apiKeys/key", pemKey)
	require.NoError(t, err)
	now := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return now }

	signed, err := s.RESTToken("POST", "api.coinbase.com", "/api/v3/brokerage/orders")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, tok.Valid)

	assert.Equal(t, "organizations/org/apiKeys/key", tok.Header["kid"])
	assert.NotEmpty(t, tok.Header["nonce"])
	assert.Equal(t, "organizations/org/apiKeys/key", claims["sub"])
	assert.Equal(t, "cdp", claims["iss"])
	assert.Equal(t, "POST api.coinbase.com/api/v3/brokerage/orders", claims["uri"])
	assert.EqualValues(t, now.Unix(), claims["nbf"])
	assert.EqualValues(t, now.Add(2*time.Minute).Unix(), claims["exp"])
}

func TestSigner_NonceIsFreshPerToken(t *testing.T) {
	_, pemKey := newTestKey(t)
	s, err := NewSigner("k", pemKey)
	require.NoError(t, err)

	a, err := s.WSToken()
	require.NoError(t, err)
	b, err := s.WSToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
