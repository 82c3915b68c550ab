package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hashed, err := HashPassword("secret123")
	require.NoError(t, err)
	require.NotEmpty(t, hashed)
	assert.NotEqual(t, "secret123", hashed)

	assert.True(t, CheckPassword(hashed, "secret123"))
}

func TestCheckPassword_Mismatch(t *testing.T) {
	t.Parallel()

	hashed, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.False(t, CheckPassword(hashed, "wrong-password"))
	assert.False(t, CheckPassword(hashed, ""))
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "secret123"))
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("secret123")
	require.NoError(t, err)
	second, err := HashPassword("secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
