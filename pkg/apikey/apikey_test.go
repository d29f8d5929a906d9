package apikey_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/apikey"
)

const secret = "0123456789abcdef-secret"

func TestGenerateAndVerify(t *testing.T) {
	t.Parallel()

	gen, err := apikey.New(secret)
	require.NoError(t, err)

	envID := uuid.New()
	key, err := gen.GenerateKey(envID)
	require.NoError(t, err)
	require.NoError(t, gen.VerifyKey(key))

	got, err := gen.EnvironmentID(key)
	require.NoError(t, err)
	assert.Equal(t, envID, got)

	other, err := gen.GenerateKey(envID)
	require.NoError(t, err)
	assert.NotEqual(t, key, other, "keys must be unique per call")
}

func TestVerifyRejectsForgedKeys(t *testing.T) {
	t.Parallel()

	gen, err := apikey.New(secret)
	require.NoError(t, err)
	key, err := gen.GenerateKey(uuid.New())
	require.NoError(t, err)

	otherGen, err := apikey.New("another-secret-of-16+")
	require.NoError(t, err)
	assert.ErrorIs(t, otherGen.VerifyKey(key), apikey.ErrSignatureInvalid)

	data, sig, _ := strings.Cut(key, ".")
	tampered := []byte(data)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", apikey.ErrInvalidKey},
		{"no separator", data, apikey.ErrInvalidKey},
		{"bad base64", "!!!." + sig, apikey.ErrInvalidKey},
		{"short payload", "AAAA." + sig, apikey.ErrInvalidKey},
		{"tampered payload", string(tampered) + "." + sig, apikey.ErrSignatureInvalid},
		{"short signature", data + ".AAAA", apikey.ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, gen.VerifyKey(tt.key), tt.want)
		})
	}
}

func TestNewRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := apikey.New("short")
	assert.ErrorIs(t, err, apikey.ErrSecretTooShort)
}
