package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey       = errors.New("invalid api key format")
	ErrSignatureInvalid = errors.New("api key signature mismatch")
	ErrSecretTooShort   = errors.New("api key secret must be at least 16 bytes")
)

const (
	nonceSize   = 16
	payloadSize = nonceSize + 16
	sigSize     = 12
	minSecret   = 16
)

var enc = base64.RawURLEncoding

// Generator issues and verifies environment API keys.
//
// Key format: base64url(nonce || environment id) "." base64url(signature),
// where the signature is a truncated HMAC-SHA256 of the decoded payload.
type Generator struct {
	secret []byte
}

func New(secret string) (*Generator, error) {
	if len(secret) < minSecret {
		return nil, ErrSecretTooShort
	}
	return &Generator{secret: []byte(secret)}, nil
}

// GenerateKey returns a new key bound to environmentID. Two calls never return
// the same key.
func (g *Generator) GenerateKey(environmentID uuid.UUID) (string, error) {
	payload := make([]byte, payloadSize)
	if _, err := rand.Read(payload[:nonceSize]); err != nil {
		return "", err
	}
	copy(payload[nonceSize:], environmentID[:])

	return enc.EncodeToString(payload) + "." + enc.EncodeToString(g.sign(payload)), nil
}

// VerifyKey checks the format and signature of key.
func (g *Generator) VerifyKey(key string) error {
	_, err := g.parse(key)
	return err
}

// EnvironmentID returns the environment a verified key was issued for.
func (g *Generator) EnvironmentID(key string) (uuid.UUID, error) {
	payload, err := g.parse(key)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(payload[nonceSize:])
}

func (g *Generator) parse(key string) ([]byte, error) {
	data, sig, ok := strings.Cut(key, ".")
	if !ok {
		return nil, ErrInvalidKey
	}

	payload, err := enc.DecodeString(data)
	if err != nil || len(payload) != payloadSize {
		return nil, ErrInvalidKey
	}
	got, err := enc.DecodeString(sig)
	if err != nil || len(got) != sigSize {
		return nil, ErrInvalidKey
	}

	if subtle.ConstantTimeCompare(got, g.sign(payload)) != 1 {
		return nil, ErrSignatureInvalid
	}
	return payload, nil
}

func (g *Generator) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, g.secret)
	h.Write(payload)
	return h.Sum(nil)[:sigSize]
}
