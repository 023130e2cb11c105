package clients

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDiscordNotifierRequiresCredentials(t *testing.T) {
	_, err := NewDiscordNotifier("", "channel")
	require.Error(t, err)
	_, err = NewDiscordNotifier("token", "")
	require.Error(t, err)
}

func TestSplitChunks(t *testing.T) {
	require.Nil(t, splitChunks("", 10))

	chunks := splitChunks("abcdef", 10)
	require.Equal(t, []string{"abcdef"}, chunks)

	chunks = splitChunks(strings.Repeat("x", 25), 10)
	require.Len(t, chunks, 3)
	require.Equal(t, strings.Repeat("x", 10), chunks[0])
	require.Equal(t, strings.Repeat("x", 5), chunks[2])
}
