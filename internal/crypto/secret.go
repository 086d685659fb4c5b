// Package crypto stores the exchange API secret at rest, sealed with a
// password.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// ErrWrongPassword is returned when authentication of the sealed secret fails.
var ErrWrongPassword = errors.New("crypto: decryption failed (wrong password?)")

// sealedSecret is the on-disk format. Binary fields are base64 (standard).
type sealedSecret struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// SecretSource says where LoadSecret finds the API secret.
type SecretSource struct {
	// Raw is the PEM secret itself. It wins when set.
	Raw string

	// EncryptedPath is a file produced by EncryptSecret.
	EncryptedPath string
	Password      string
}

// EncryptSecret seals secret with password (PBKDF2-HMAC-SHA256 then
// AES-256-GCM) and returns the JSON document to write to disk.
func EncryptSecret(secret, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("crypto: secret must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt, pbkdf2Iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := sealedSecret{
		Version:    currentVersion,
		KDF:        "pbkdf2-sha256",
		Iterations: pbkdf2Iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, []byte(secret), nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptSecret opens a document produced by EncryptSecret.
func DecryptSecret(sealed []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var stored sealedSecret
	if err := json.Unmarshal(sealed, &stored); err != nil {
		return "", fmt.Errorf("crypto: parsing sealed secret: %w", err)
	}
	if stored.Version != currentVersion {
		return "", fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}
	iterations := stored.Iterations
	if iterations <= 0 {
		iterations = pbkdf2Iterations
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt, iterations)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

// LoadSecret resolves the API secret: Raw first, then the encrypted file.
func LoadSecret(src SecretSource) (string, error) {
	if src.Raw != "" {
		return src.Raw, nil
	}
	if src.EncryptedPath != "" {
		data, err := os.ReadFile(src.EncryptedPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading sealed secret: %w", err)
		}
		return DecryptSecret(data, src.Password)
	}
	return "", errors.New("crypto: no api secret configured (set the secret or an encrypted secret path)")
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
