// Package refcode generates short referral codes for teams.
package refcode

import (
	"crypto/rand"
	"fmt"
)

// alphabet excludes visually ambiguous characters (0/O, 1/I) so codes can be
// read back over the phone.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length is the number of characters in a generated code.
const Length = 8

// Generate returns a random referral code.
func Generate() (string, error) {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating referral code: %w", err)
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}
