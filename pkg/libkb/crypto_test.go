package libkb_test

import (
	"testing"

	"github.com/kasblog/kasblog/pkg/libkb"
	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomBytes(t *testing.T) {
	for _, v := range []int{1, 8, 16, 32, 128, 512, 8192} {
		salt, err := libkb.GenerateRandomBytes(v)
		assert.NoError(t, err)
		assert.Equal(t, int(v), len(salt))
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := libkb.GenerateKey()
	assert.NoError(t, err)
	assert.Len(t, k1, libkb.KeySize)

	k2, err := libkb.GenerateKey()
	assert.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestKeyEncoding(t *testing.T) {
	key, err := libkb.GenerateKey()
	assert.NoError(t, err)

	decoded, err := libkb.DecodeKey(libkb.EncodeKey(key))
	assert.NoError(t, err)
	assert.Equal(t, key, decoded)

	s := libkb.EncodeURLKey(key)
	assert.NotContains(t, s, "=")
	assert.NotContains(t, s, "+")
	assert.NotContains(t, s, "/")

	decoded, err = libkb.DecodeURLKey(s)
	assert.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = libkb.DecodeKey(libkb.EncodeKey(key[:16]))
	assert.Error(t, err)

	_, err = libkb.DecodeURLKey("not a key!")
	assert.Error(t, err)
}
