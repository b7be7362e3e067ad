package user

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidHash is returned when an encoded hash cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash encoding")

// PasswordHasher defines the hashing contract. Verify must return false, not
// panic, for hashes produced by a different algorithm.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// NewHasher returns the hasher for a configured algorithm name.
func NewHasher(algo string) (PasswordHasher, error) {
	switch strings.ToLower(algo) {
	case "", "argon2id", "argon2":
		return Argon2Hasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: 12}, nil
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algo)
	}
}

// Argon2Hasher stores PHC strings: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
// Zero fields take the defaults below.
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

func (a Argon2Hasher) params() Argon2Hasher {
	if a.Time == 0 {
		a.Time = 1
	}
	if a.Memory == 0 {
		a.Memory = 64 * 1024
	}
	if a.Threads == 0 {
		a.Threads = 4
	}
	if a.KeyLen == 0 {
		a.KeyLen = 32
	}
	if a.SaltLen == 0 {
		a.SaltLen = 16
	}
	return a
}

func (a Argon2Hasher) Hash(pw string) (string, error) {
	p := a.params()
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(pw), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a Argon2Hasher) Verify(hash, pw string) bool {
	d, err := decodeArgon2(hash)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(pw), d.salt, d.time, d.memory, d.threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(key, d.key) == 1
}

func (a Argon2Hasher) NeedsRehash(hash string) bool {
	d, err := decodeArgon2(hash)
	if err != nil {
		return true
	}
	p := a.params()
	return d.time != p.Time || d.memory != p.Memory || d.threads != p.Threads || uint32(len(d.key)) != p.KeyLen
}

type argon2Digest struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodeArgon2(hash string) (*argon2Digest, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrInvalidHash
	}
	var d argon2Digest
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.threads); err != nil {
		return nil, ErrInvalidHash
	}
	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, ErrInvalidHash
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(d.key) == 0 {
		return nil, ErrInvalidHash
	}
	return &d, nil
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (b BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != b.cost()
}

// LegacySHA256Hasher verifies the unsalted hex SHA-256 digests written by
// earlier releases. It is only consulted for verification; such hashes are
// replaced on the next successful login.
type LegacySHA256Hasher struct{}

func (LegacySHA256Hasher) Hash(pw string) (string, error) {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:]), nil
}

func (l LegacySHA256Hasher) Verify(hash, pw string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	want, _ := l.Hash(pw)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(want)) == 1
}

func (LegacySHA256Hasher) NeedsRehash(string) bool { return true }
