package blob

import "testing"

import "github.com/stretchr/testify/require"

func TestCoverageMergesAndCompletes(t *testing.T) {
	var c coverage

	require.False(t, c.add(0, 10, 30))
	require.False(t, c.add(20, 30, 30))
	require.Equal(t, []span{{10, 20}}, c.missingRanges(30))
	require.True(t, c.add(10, 20, 30))
}

func TestCoverageZeroTotalIsAlwaysComplete(t *testing.T) {
	var c coverage
	require.True(t, c.add(0, 0, 0))
}
