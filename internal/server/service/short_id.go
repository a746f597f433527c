package service

import (
	"crypto/rand"
	"math/big"
)

// ShortIDLength is the length of the generated short ids.
const ShortIDLength = 8

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ShortID generates a random identifier drawn from the 62 alphanumeric symbols.
func ShortID(length int) string {
	id := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // should never occured because max >= 0
		}
		id[i] = alphanumeric[int(n.Int64())]
	}

	return string(id)
}
