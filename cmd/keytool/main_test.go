package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dcabot/internal/crypto"
)

func writeKey(t *testing.T, dir string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	path := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(path, []byte(pemText), 0o600))
	return path, pemText
}

func TestRun_SealAndVerify(t *testing.T) {
	dir := t.TempDir()
	in, pemText := writeKey(t, dir)
	out := filepath.Join(dir, "key.enc.json")

	require.NoError(t, run(in, out, false, "hunter2"))

	secret, err := crypto.LoadSecret(crypto.SecretSource{EncryptedPath: out, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, pemText, secret)

	assert.NoError(t, run(out, "", true, "hunter2"))
	assert.ErrorIs(t, run(out, "", true, "wrong"), crypto.ErrWrongPassword)
}

func TestRun_Validation(t *testing.T) {
	dir := t.TempDir()
	in, _ := writeKey(t, dir)

	assert.ErrorContains(t, run("", "x", false, "pw"), "-in is required")
	assert.ErrorContains(t, run(in, "x", false, ""), passwordEnv)
	assert.ErrorContains(t, run(in, "", false, "pw"), "-out is required")

	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("hello"), 0o600))
	assert.ErrorContains(t, run(garbage, filepath.Join(dir, "o.json"), false, "pw"), "not a usable key")
}
