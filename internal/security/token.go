package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// TokenBytes is the raw entropy of a check-in token (256 bits).
const TokenBytes = 32

type TokenGenerator interface {
	Generate() string
}

type RandomTokenGenerator struct{}

func NewRandomTokenGenerator() *RandomTokenGenerator { return &RandomTokenGenerator{} }

// Generate never returns an error: an unreadable entropy source is not a
// condition the process can recover from.
func (RandomTokenGenerator) Generate() string {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("security: read random token: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// TokenHasher derives the lookup key stored for a token. Only the hash is
// persisted so a database read does not yield redeemable tokens.
type TokenHasher struct {
	key []byte
}

func NewTokenHasher(pepper string) *TokenHasher {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &TokenHasher{key: key}
}

func (h *TokenHasher) Hash(token string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// key length is bounded in NewTokenHasher
		panic(fmt.Sprintf("security: init token hasher: %v", err))
	}
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
