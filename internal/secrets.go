// Package internal holds the cryptographic generation primitives shared by
// the authcore flows.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a bearer token with 256 bits of entropy, hex
// encoded. Used for email-verification and password-reset capabilities; the
// string has no decodable structure.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// backupCodeAlphabet avoids characters users confuse when typing from paper
// (I/L/O/U dropped).
const backupCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// NewBackupCode returns one human-typable single-use code.
func NewBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeBackupCode strips the separators and casing users add when
// copying codes.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// HashBackupCode maps a submitted code to its stored digest. Plaintext
// backup codes are never persisted.
func HashBackupCode(code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeBackupCode(code)))
}
