// Command keytool seals a Coinbase API private key into the encrypted JSON
// file read by dcabot's coinbase.encrypted_secret_path. The password comes
// from DCABOT_KEY_PASSWORD.
//
//	DCABOT_KEY_PASSWORD=... keytool -in cdp_api_key.pem -out key.enc.json
//	DCABOT_KEY_PASSWORD=... keytool -verify -in key.enc.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alanyoungcy/dcabot/internal/crypto"
	"github.com/alanyoungcy/dcabot/internal/platform/coinbase"
)

const passwordEnv = "DCABOT_KEY_PASSWORD"

func main() {
	in := flag.String("in", "", "PEM private key to encrypt, or sealed file with -verify")
	out := flag.String("out", "", "where to write the sealed key")
	verify := flag.Bool("verify", false, "decrypt -in and check it parses as an EC key")
	flag.Parse()

	if err := run(*in, *out, *verify, os.Getenv(passwordEnv)); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out string, verify bool, password string) error {
	if in == "" {
		return fmt.Errorf("-in is required")
	}
	if password == "" {
		return fmt.Errorf("%s must be set", passwordEnv)
	}

	if verify {
		secret, err := crypto.LoadSecret(crypto.SecretSource{EncryptedPath: in, Password: password})
		if err != nil {
			return err
		}
		if _, err := coinbase.ParseECPrivateKey(secret); err != nil {
			return fmt.Errorf("decrypted secret is not a usable key: %w", err)
		}
		fmt.Println("ok")
		return nil
	}

	if out == "" {
		return fmt.Errorf("-out is required")
	}
	pemBytes, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if _, err := coinbase.ParseECPrivateKey(string(pemBytes)); err != nil {
		return fmt.Errorf("input is not a usable key: %w", err)
	}
	sealed, err := crypto.EncryptSecret(string(pemBytes), password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, sealed, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
