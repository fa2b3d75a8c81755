// internal/service/referral/code.go
package referral

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	xerrors "rental-agents-service/internal/pkg/errors"
)

const (
	CodePrefix   = "REF"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8

	DefaultCodeAttempts = 5
)

var alphabetSize = big.NewInt(int64(len(codeAlphabet)))

// GenerateCode draws codeLength characters uniformly from [A-Z0-9].
func GenerateCode() (string, error) {
	buf := make([]byte, 0, len(CodePrefix)+codeLength)
	buf = append(buf, CodePrefix...)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf = append(buf, codeAlphabet[n.Int64()])
	}
	return string(buf), nil
}

// IsWellFormed reports whether code has the REF + 8 [A-Z0-9] shape.
func IsWellFormed(code string) bool {
	if len(code) != len(CodePrefix)+codeLength || code[:len(CodePrefix)] != CodePrefix {
		return false
	}
	for i := len(CodePrefix); i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

type codeChecker interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// uniqueCode retries on collision up to attempts times. The store's unique
// index stays the final arbiter; this only keeps collisions rare.
func uniqueCode(ctx context.Context, repo codeChecker, gen func() (string, error), attempts int) (string, error) {
	if attempts <= 0 {
		attempts = DefaultCodeAttempts
	}
	for i := 0; i < attempts; i++ {
		code, err := gen()
		if err != nil {
			return "", err
		}
		exists, err := repo.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", xerrors.ErrCodeGenerationExhausted
}
