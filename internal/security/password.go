package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// OWASP-recommended argon2id parameters.
var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

func HashPassword(password string) ([]byte, error) {
	return HashPasswordWithParams(password, defaultParams)
}

func HashPasswordWithParams(password string, params Argon2Params) ([]byte, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	encoded := base64.StdEncoding.EncodeToString(hash)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)

	result := fmt.Sprintf("$argon2id$v=19$t=%d,m=%d,p=%d$%s$%s",
		params.Time, params.Memory, params.Threads, encodedSalt, encoded)

	return []byte(result), nil
}

// VerifyPassword reports whether password matches encodedHash. A malformed
// or truncated digest verifies false, never panics or errors.
func VerifyPassword(password string, encodedHash []byte) bool {
	params, salt, hash, ok := decodeDigest(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

// NeedsRehash reports whether digest was produced with weaker parameters
// than the current defaults (or cannot be parsed at all).
func NeedsRehash(encodedHash []byte) bool {
	params, _, _, ok := decodeDigest(encodedHash)
	if !ok {
		return true
	}
	return params.Time < defaultParams.Time ||
		params.Memory < defaultParams.Memory ||
		params.Threads < defaultParams.Threads ||
		params.KeyLen < defaultParams.KeyLen
}

func decodeDigest(encodedHash []byte) (Argon2Params, []byte, []byte, bool) {
	parts := strings.Split(string(encodedHash), "$")
	// "", "argon2id", "v=19", "t=..,m=..,p=..", salt, hash
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return Argon2Params{}, nil, nil, false
	}

	var (
		time    uint32
		memory  uint32
		threads uint8
	)
	if _, err := fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &time, &memory, &threads); err != nil {
		return Argon2Params{}, nil, nil, false
	}

	saltB64, hashB64 := parts[4], parts[5]

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return Argon2Params{}, nil, nil, false
	}
	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil || len(hash) == 0 {
		return Argon2Params{}, nil, nil, false
	}

	params := Argon2Params{
		Time:    time,
		Memory:  memory,
		Threads: threads,
		KeyLen:  uint32(len(hash)),
		SaltLen: uint32(len(salt)),
	}
	return params, salt, hash, true
}
