package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Length(t *testing.T) {
	for _, n := range []int{1, 4, 6, 8} {
		code, err := GenerateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit %q in %q", r, code)
		}
	}
}

func TestGenerateCode_DefaultsToSix(t *testing.T) {
	code, err := GenerateCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestGenerateCode_EveryDigitAppearsInEachPosition(t *testing.T) {
	var seen [6][10]bool
	for i := 0; i < 2000; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		for pos, r := range code {
			seen[pos][r-'0'] = true
		}
	}
	for pos := range seen {
		for d, ok := range seen[pos] {
			assert.True(t, ok, "digit %d never seen at position %d", d, pos)
		}
	}
}
