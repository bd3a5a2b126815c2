package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReducedSize(t *testing.T) {
	tests := []struct {
		name         string
		h, w, levels int
		wantH, wantW int
	}{
		{"default region", 120, 160, 3, 15, 20},
		{"odd sizes round up", 15, 21, 1, 8, 11},
		{"no levels", 7, 9, 0, 7, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, w := ReducedSize(tt.h, tt.w, tt.levels)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantW, w)

			s := Reduce(NewSample(tt.h, tt.w, 3), tt.levels)
			assert.Equal(t, tt.wantH, s.Height)
			assert.Equal(t, tt.wantW, s.Width)
		})
	}
}

func TestPyramidKeepsConstant(t *testing.T) {
	s := NewSample(120, 160, 3)
	s.Fill(100)

	small := Reduce(s, 3)
	for _, v := range small.Pix {
		assert.InDelta(t, 100, v, 1e-9)
	}

	big := Expand(small, 3)
	assert.Equal(t, 120, big.Height)
	assert.Equal(t, 160, big.Width)
	for _, v := range big.Pix {
		assert.InDelta(t, 100, v, 1e-9)
	}
}

func TestExpandOvershoots(t *testing.T) {
	s := Reduce(NewSample(15, 21, 3), 2)
	big := Expand(s, 2)

	assert.GreaterOrEqual(t, big.Height, 15)
	assert.GreaterOrEqual(t, big.Width, 21)

	c, err := big.Crop(15, 21)
	assert.NoError(t, err)
	assert.Equal(t, 15*21*3, c.Len())
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(3, 1))
}
