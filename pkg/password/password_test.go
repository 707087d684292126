package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	assert.NoError(t, Verify(hash, "s3cret!"))
	assert.ErrorIs(t, Verify(hash, "wrong"), ErrMismatch)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	assert.Error(t, err)

	assert.Error(t, Verify("", "x"))
}
