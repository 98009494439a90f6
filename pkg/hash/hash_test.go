package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordAndVerify(t *testing.T) {
	encoded, err := Password("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify("wrong password", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := Password("same password")
	require.NoError(t, err)
	second, err := Password("same password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=3,p=2$salt",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=bad$c2FsdA$a2V5",
	}

	for _, encoded := range cases {
		_, err := Verify("anything", encoded)
		require.ErrorIs(t, err, ErrMalformedHash, "hash %q", encoded)
	}
}

func TestVerifyRejectsUnsupportedVersion(t *testing.T) {
	encoded, err := Password("password123")
	require.NoError(t, err)

	downgraded := strings.Replace(encoded, "v=19", "v=16", 1)
	_, err = Verify("password123", downgraded)
	require.ErrorIs(t, err, ErrVersion)
}
