package license

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func TestGenerateCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^PRO30-[0-9A-F]{8}-[0-9A-F]{4}$`)

	code, err := GenerateCode("PRO30", testSecret)
	require.NoError(t, err)
	assert.Regexp(t, pattern, code)
	assert.True(t, VerifyCode(code, testSecret))
}

func TestGenerateCodeIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode("UNL7", testSecret)
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestVerifyCodeRejectsTampering(t *testing.T) {
	code, err := GenerateCode("PRO90", testSecret)
	require.NoError(t, err)

	// Flip one character of the random part.
	tampered := []byte(code)
	pos := len("PRO90-")
	if tampered[pos] == 'A' {
		tampered[pos] = 'B'
	} else {
		tampered[pos] = 'A'
	}
	assert.False(t, VerifyCode(string(tampered), testSecret))

	// A checksum minted under a different secret must not verify.
	other, err := GenerateCode("PRO90", "another-secret")
	require.NoError(t, err)
	assert.False(t, VerifyCode(other, testSecret))
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	valid, err := GenerateCode("LIFE", testSecret)
	require.NoError(t, err)

	for _, code := range []string{
		"",
		"PRO30",
		"PRO30-DEADBEEF",
		"PRO30-DEAD-BEEF-CAFE",
		"PRO30-SHORT-ABCD",
		"PRO30-DEADBEEF-ABCDE",
		strings.ToLower(valid),
	} {
		assert.False(t, VerifyCode(code, testSecret), "code %q must not verify", code)
	}
}
