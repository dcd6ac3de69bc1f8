package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "hello world", Clean(" hello \n world "))
	require.Equal(t, "", Clean("  \n\t "))
	require.Equal(t, "one", Clean("one"))
}
