package revision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey(DefaultKeyPrefix, "d1", 1000)
	k2 := DeriveKey(DefaultKeyPrefix, "d1", 1000)
	require.Equal(t, k1, k2)
	require.Equal(t, "revision-d1-1000", k1)

	require.NotEqual(t, k1, DeriveKey(DefaultKeyPrefix, "d1", 1001))
	require.NotEqual(t, k1, DeriveKey(DefaultKeyPrefix, "d2", 1000))
	require.True(t, strings.HasPrefix(k1, DocumentPrefix(DefaultKeyPrefix, "d1")))
}

func TestDocumentPrefixDoesNotMatchLongerIDs(t *testing.T) {
	k := DeriveKey(DefaultKeyPrefix, "d10", 5)
	require.False(t, strings.HasPrefix(k, DocumentPrefix(DefaultKeyPrefix, "d1")))
}

func TestDocumentPrefixIsTextual(t *testing.T) {
	k := DeriveKey(DefaultKeyPrefix, "d1-5", 5)
	require.True(t, strings.HasPrefix(k, DocumentPrefix(DefaultKeyPrefix, "d1")))
}
