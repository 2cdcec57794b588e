package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndCompare(t *testing.T) {
	h := HashSecretSHA256("secret")
	assert.Len(t, h, 64)
	assert.True(t, ConstantTimeEqualHex(h, HashSecretSHA256("secret")))
	assert.False(t, ConstantTimeEqualHex(h, HashSecretSHA256("other")))
	assert.False(t, ConstantTimeEqualHex(h, "zz"))
	assert.True(t, EqualSecrets("admin-key", "admin-key"))
	assert.False(t, EqualSecrets("admin-key", "admin-kez"))
}

func TestOCPITokenCandidates(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("ebf3b399-779f-4497-9b9d-ac6ad3cc44d2"))
	assert.Equal(t, []string{"ebf3b399-779f-4497-9b9d-ac6ad3cc44d2", encoded}, OCPITokenCandidates("Token "+encoded))
	assert.Equal(t, []string{"not*base64"}, OCPITokenCandidates("token not*base64"))
	assert.Nil(t, OCPITokenCandidates("Bearer abc"))
	assert.Nil(t, OCPITokenCandidates("Token "))
	assert.Nil(t, OCPITokenCandidates(""))
}
