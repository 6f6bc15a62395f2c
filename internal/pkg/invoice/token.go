package invoice

import (
	"crypto/rand"
	"fmt"
)

const (
	tokenAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	PublicTokenLength = 32
)

// NewPublicToken returns a crypto-random base62 token of the given length.
func NewPublicToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length: %d", length)
	}

	// 248 is the largest multiple of 62 below 256; higher bytes are rejected
	// to keep the distribution uniform.
	const maxByte = 248

	out := make([]byte, length)
	buf := make([]byte, length*2)
	n := 0
	for n < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxByte {
				continue
			}
			out[n] = tokenAlphabet[int(b)%len(tokenAlphabet)]
			n++
			if n == length {
				break
			}
		}
	}
	return string(out), nil
}
