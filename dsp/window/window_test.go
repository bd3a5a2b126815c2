package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectangleLeavesBuffer(t *testing.T) {
	buf := []float64{1, 2, 3, 4}
	Rectangle(buf)
	assert.Equal(t, []float64{1, 2, 3, 4}, buf)
}

func TestHannEndsAtZero(t *testing.T) {
	buf := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	Hann(buf)
	assert.InDelta(t, 0, buf[0], 1e-12)
	assert.InDelta(t, 1, buf[4], 1e-12)
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		fn, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}

	_, err := Lookup("lanczos")
	assert.Error(t, err)
}
