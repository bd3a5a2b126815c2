package detect

import (
	"image"
	"testing"

	"github.com/noriah/pulsecat/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(f *frame.Frame, r image.Rectangle, b, g, red uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			off := f.PixOffset(x, y)
			f.Pix[off], f.Pix[off+1], f.Pix[off+2] = b, g, red
		}
	}
}

func TestAlways(t *testing.T) {
	r := image.Rect(1, 2, 3, 4)
	ok, box := Always{}.Detect(frame.New(8, 8), r)
	assert.True(t, ok)
	assert.Equal(t, r, box)
}

func TestSkin(t *testing.T) {
	f := frame.New(20, 20)
	region := image.Rect(0, 0, 20, 20)

	s := NewSkin()

	ok, _ := s.Detect(f, region)
	assert.False(t, ok, "black frame")

	face := image.Rect(4, 4, 16, 17)
	fill(f, face, 110, 140, 190)

	ok, box := s.Detect(f, region)
	assert.True(t, ok)
	assert.Equal(t, face, box)

	fill(f, face, 200, 60, 20)
	ok, _ = s.Detect(f, region)
	assert.False(t, ok, "blue patch")
}

func TestSkinRegionOutsideFrame(t *testing.T) {
	ok, box := NewSkin().Detect(frame.New(4, 4), image.Rect(10, 10, 20, 20))
	assert.False(t, ok)
	assert.True(t, box.Empty())
}

func TestNew(t *testing.T) {
	d, err := New("skin", Options{Fraction: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, d.(*Skin).Fraction)

	_, err = New("eyes", Options{})
	assert.Error(t, err)

	assert.Contains(t, Names(), "always")
}
