package frame

// Gaussian pyramid steps using the 5-tap binomial kernel [1 4 6 4 1] / 16 and
// reflect-101 borders. Reduce halves each dimension (rounding up), Expand
// doubles it.

// Reduce downsamples s by the given number of pyramid levels.
func Reduce(s *Sample, levels int) *Sample {
	for i := 0; i < levels; i++ {
		s = pyrDown(s)
	}
	return s
}

// Expand upsamples s by the given number of pyramid levels. The result may be
// larger than the region s was reduced from; callers crop.
func Expand(s *Sample, levels int) *Sample {
	for i := 0; i < levels; i++ {
		s = pyrUp(s)
	}
	return s
}

// ReducedSize returns the height and width of a height x width region after
// the given number of Reduce levels.
func ReducedSize(height, width, levels int) (int, int) {
	for i := 0; i < levels; i++ {
		height, width = (height+1)/2, (width+1)/2
	}
	return height, width
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}

	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}

	return i
}

// downTap evaluates the reduce kernel centred on src index i of a line of n
// values read through at.
func downTap(at func(int) float64, i, n int) float64 {
	return (at(reflect101(i-2, n)) +
		4*at(reflect101(i-1, n)) +
		6*at(i) +
		4*at(reflect101(i+1, n)) +
		at(reflect101(i+2, n))) / 16
}

// upTap evaluates output index j of the expand kernel over a line of n values.
func upTap(at func(int) float64, j, n int) float64 {
	i := j / 2
	if j%2 == 0 {
		return (at(reflect101(i-1, n)) + 6*at(i) + at(reflect101(i+1, n))) / 8
	}
	return (at(i) + at(reflect101(i+1, n))) / 2
}

func pyrDown(s *Sample) *Sample {
	w, h := (s.Width+1)/2, (s.Height+1)/2

	// horizontal pass
	tmp := NewSample(s.Height, w, s.Channels)
	for y := 0; y < s.Height; y++ {
		for c := 0; c < s.Channels; c++ {
			at := func(x int) float64 { return s.At(y, x, c) }
			for x := 0; x < w; x++ {
				tmp.Set(y, x, c, downTap(at, 2*x, s.Width))
			}
		}
	}

	// vertical pass
	out := NewSample(h, w, s.Channels)
	for x := 0; x < w; x++ {
		for c := 0; c < s.Channels; c++ {
			at := func(y int) float64 { return tmp.At(y, x, c) }
			for y := 0; y < h; y++ {
				out.Set(y, x, c, downTap(at, 2*y, s.Height))
			}
		}
	}

	return out
}

func pyrUp(s *Sample) *Sample {
	w, h := s.Width*2, s.Height*2

	tmp := NewSample(s.Height, w, s.Channels)
	for y := 0; y < s.Height; y++ {
		for c := 0; c < s.Channels; c++ {
			at := func(x int) float64 { return s.At(y, x, c) }
			for x := 0; x < w; x++ {
				tmp.Set(y, x, c, upTap(at, x, s.Width))
			}
		}
	}

	out := NewSample(h, w, s.Channels)
	for x := 0; x < w; x++ {
		for c := 0; c < s.Channels; c++ {
			at := func(y int) float64 { return tmp.At(y, x, c) }
			for y := 0; y < h; y++ {
				out.Set(y, x, c, upTap(at, y, s.Height))
			}
		}
	}

	return out
}
