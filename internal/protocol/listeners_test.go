package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListeners_LastRegistrationWins(t *testing.T) {
	l := NewListeners[func() string]()

	l.On("ping", func() string { return "first" })
	l.On("ping", func() string { return "second" })

	fn, ok := l.Lookup("ping")
	require.True(t, ok)
	require.Equal(t, "second", fn())
}

func TestListeners_OffIsIdempotent(t *testing.T) {
	l := NewListeners[func() string]()
	l.On("keep", func() string { return "kept" })

	require.NotPanics(t, func() {
		l.Off("missing")
		l.Off("missing")
	})

	fn, ok := l.Lookup("keep")
	require.True(t, ok)
	require.Equal(t, "kept", fn())

	l.Off("keep")

	_, ok = l.Lookup("keep")
	require.False(t, ok)
}

func TestListeners_Names(t *testing.T) {
	l := NewListeners[int]()
	l.On("b", 2)
	l.On("a", 1)

	require.Equal(t, []string{"a", "b"}, l.Names())
}
