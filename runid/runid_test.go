package runid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndPrefixed(t *testing.T) {
	a := New("session.one")
	b := New("session.one")
	require.NotEqual(t, a, b)
	require.Contains(t, a, "session-one-")
}

func TestNewWithEmptySessionFallsBackToRunPrefix(t *testing.T) {
	id := New("")
	require.Contains(t, id, "run-")
}
