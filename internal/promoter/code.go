package promoter

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

// GenerateCode returns prefix followed by six random uppercase base-36
// characters. Collisions are left to the registry.
func GenerateCode(prefix string) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	suffix := make([]byte, codeLength)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return prefix + string(suffix), nil
}
