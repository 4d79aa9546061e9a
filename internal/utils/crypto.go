// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateBase36 returns a random lowercase base36 string of the given
// length, used for workflow execution ids.
func GenerateBase36(length int) (string, error) {
	b := make([]byte, 0, length)
	for len(b) < length {
		n, err := rand.Int(rand.Reader, big.NewInt(36))
		if err != nil {
			return "", err
		}
		b = strconv.AppendInt(b, n.Int64(), 36)
	}
	return string(b[:length]), nil
}

// RandomTwoDigits returns a zero-padded number in [00, 99] for policy
// number suffixes.
func RandomTwoDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return "", err
	}
	s := strconv.FormatInt(n.Int64(), 10)
	if len(s) == 1 {
		s = "0" + s
	}
	return s, nil
}
