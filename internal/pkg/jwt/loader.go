// internal/pkg/jwt/loader.go
package jwt

import (
	"fmt"
	"os"
	"strings"
)

// Config locates the RSA keys. An inline PEM wins over its path, so keys can
// come straight from a secret store through the environment.
type Config struct {
	PubPath  string
	PubPEM   string
	PrivPath string
	PrivPEM  string
	Issuer   string
	Audience string
	KID      string
}

// LoadVerifier reads the identity service's public key.
func LoadVerifier(cfg Config) (*Verifier, error) {
	b, err := readKey(cfg.PubPEM, cfg.PubPath, "public")
	if err != nil {
		return nil, err
	}
	pub, err := ParseRSAPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return NewVerifier(pub, cfg.Issuer, cfg.Audience), nil
}

// LoadSigner reads a private key for operator tokens.
func LoadSigner(cfg Config) (*Signer, error) {
	b, err := readKey(cfg.PrivPEM, cfg.PrivPath, "private")
	if err != nil {
		return nil, err
	}
	priv, err := ParseRSAPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewSigner(priv, cfg.Issuer, cfg.Audience, cfg.KID), nil
}

func readKey(inline, path, kind string) ([]byte, error) {
	if inline = strings.TrimSpace(inline); inline != "" {
		// env values often carry escaped newlines
		return []byte(strings.ReplaceAll(inline, `\n`, "\n")), nil
	}
	if path == "" {
		return nil, fmt.Errorf("no %s key configured", kind)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s key from %s: %w", kind, path, err)
	}
	return b, nil
}
