package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the argon2 tests fast.
var testParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPasswordWithParams("s3cret-password", testParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(hash), "$argon2id$v=19$"))

	assert.True(t, VerifyPassword("s3cret-password", hash))
	assert.False(t, VerifyPassword("s3cret-passworD", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestPasswordHashUniqueSalt(t *testing.T) {
	first, err := HashPasswordWithParams("same-password-1", testParams)
	require.NoError(t, err)
	second, err := HashPasswordWithParams("same-password-1", testParams)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$t=1,m=8192,p=1$notbase64!!$also-not",
		"$argon2i$v=19$t=1,m=8192,p=1$c2FsdA==$aGFzaA==",
		"$argon2id$v=19$t=x,m=y,p=z$c2FsdA==$aGFzaA==",
		"$argon2id$v=19$t=1,m=8192,p=1$c2FsdA==",
	} {
		assert.False(t, VerifyPassword("whatever", []byte(digest)), "digest %q", digest)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := HashPasswordWithParams("password-1", testParams)
	require.NoError(t, err)
	assert.True(t, NeedsRehash(weak))

	strong, err := HashPassword("password-1")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(strong))

	assert.True(t, NeedsRehash([]byte("garbage")))
}
