package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("orchid-table-9", 0)
	require.NoError(t, err)
	require.NotEqual(t, "orchid-table-9", hash)

	assert.True(t, VerifyPassword(hash, "orchid-table-9"))
	assert.False(t, VerifyPassword(hash, "orchid-table-8"))
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "orchid-table-9"))
}
