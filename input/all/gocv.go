//go:build gocv

package all

import _ "github.com/noriah/pulsecat/input/gocv"
