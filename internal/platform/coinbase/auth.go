package coinbase

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the lifetime of a per-request JWT. Coinbase rejects tokens valid
// for longer than two minutes.
const tokenTTL = 2 * time.Minute

// Signer mints the ES256 bearer tokens Coinbase Developer Platform keys use.
// A fresh token is minted for every request since the uri claim binds it to
// one method and path.
type Signer struct {
	keyName string
	key     *ecdsa.PrivateKey
	now     func() time.Time
}

// NewSigner parses privateKeyPEM (SEC1 "EC PRIVATE KEY" or PKCS#8) for the
// API key keyName. Literal "\n" sequences are accepted in place of newlines,
// as keys copied into environment variables usually carry them.
func NewSigner(keyName, privateKeyPEM string) (*Signer, error) {
	if keyName == "" {
		return nil, fmt.Errorf("coinbase: api key name is empty")
	}
	key, err := ParseECPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Signer{keyName: keyName, key: key, now: time.Now}, nil
}

// ParseECPrivateKey decodes a PEM encoded ECDSA private key.
func ParseECPrivateKey(privateKeyPEM string) (*ecdsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(privateKeyPEM), `\n`, "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("coinbase: no PEM block found in api secret")
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coinbase: parse EC private key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coinbase: parse PKCS#8 private key: %w", err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("coinbase: expected ECDSA private key, got %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("coinbase: unsupported key type %q", block.Type)
	}
}

// KeyName returns the API key the signer was built for.
func (s *Signer) KeyName() string { return s.keyName }

// RESTToken returns a token authorising one request. host is the API host
// without scheme (e.g. "api.coinbase.com") and path excludes the query.
func (s *Signer) RESTToken(method, host, path string) (string, error) {
	return s.token(jwt.MapClaims{"uri": fmt.Sprintf("%s %s%s", method, host, path)})
}

// WSToken returns a token for a WebSocket subscription, which carries no uri
// claim.
func (s *Signer) WSToken() (string, error) {
	return s.token(jwt.MapClaims{})
}

func (s *Signer) token(claims jwt.MapClaims) (string, error) {
	now := s.now().UTC()
	claims["sub"] = s.keyName
	claims["iss"] = "cdp"
	claims["nbf"] = now.Unix()
	claims["exp"] = now.Add(tokenTTL).Unix()

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("coinbase: generate nonce: %w", err)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = s.keyName
	tok.Header["nonce"] = hex.EncodeToString(nonce)

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("coinbase: sign jwt: %w", err)
	}
	return signed, nil
}
