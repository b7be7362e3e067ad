package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// small parameters keep the suite fast
var testArgon2 = Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1}

func TestArgon2Hasher(t *testing.T) {
	h, err := testArgon2.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, testArgon2.Verify(h, "s3cret"))
	assert.False(t, testArgon2.Verify(h, "S3cret"))
	assert.False(t, testArgon2.NeedsRehash(h))

	h2, err := testArgon2.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "salt must differ per hash")

	assert.True(t, Argon2Hasher{}.NeedsRehash(h))
	assert.True(t, Argon2Hasher{}.Verify(h, "s3cret"), "params are read from the hash")
}

func TestArgon2Hasher_RejectsMalformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
	} {
		assert.False(t, testArgon2.Verify(h, "pw"), h)
		_, err := decodeArgon2(h)
		assert.ErrorIs(t, err, ErrInvalidHash, h)
	}
}

func TestBcryptHasher(t *testing.T) {
	b := BcryptHasher{Cost: 4}
	h, err := b.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, b.Verify(h, "hunter2"))
	assert.False(t, b.Verify(h, "hunter3"))
	assert.False(t, b.NeedsRehash(h))
	assert.True(t, BcryptHasher{Cost: 5}.NeedsRehash(h))
	assert.False(t, b.Verify("$argon2id$v=19$x", "hunter2"))
}

func TestLegacySHA256Hasher(t *testing.T) {
	l := LegacySHA256Hasher{}
	// sha256("admin")
	const digest = "8c6976e5b5410415bde908bd4dee15dfb167a9c873fc4bb8a81f6f2ab448a918"
	assert.True(t, l.Verify(digest, "admin"))
	assert.True(t, l.Verify(strings.ToUpper(digest), "admin"))
	assert.False(t, l.Verify(digest, "Admin"))
	assert.False(t, l.Verify("abc", "admin"))
	assert.True(t, l.NeedsRehash(digest))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("")
	require.NoError(t, err)
	assert.IsType(t, Argon2Hasher{}, h)

	h, err = NewHasher("BCRYPT")
	require.NoError(t, err)
	assert.IsType(t, BcryptHasher{}, h)

	_, err = NewHasher("md5")
	require.Error(t, err)
}
