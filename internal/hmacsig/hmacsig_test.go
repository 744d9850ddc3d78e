package hmacsig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"questionnaire.completed","external_id":"12345"}`)

	sig, err := Sign(payload, "shared-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "sha256="))

	assert.True(t, Verify(payload, "shared-secret", sig))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"external_id":"12345"}`)
	sig, err := Sign(payload, "shared-secret")
	require.NoError(t, err)

	assert.False(t, Verify([]byte(`{"external_id":"99999"}`), "shared-secret", sig))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	sig, err := Sign(payload, "secret-a")
	require.NoError(t, err)

	assert.False(t, Verify(payload, "secret-b", sig))
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	payload := []byte(`{}`)
	assert.False(t, Verify(payload, "secret", ""))
	assert.False(t, Verify(payload, "secret", "md5=abc"))
	assert.False(t, Verify(payload, "", "sha256=abc"))
}

func TestSignRequiresSecret(t *testing.T) {
	_, err := Sign([]byte(`{}`), "")
	assert.Error(t, err)
}
