// Package all imports all backends implemented by the input package.
package all

import (
	_ "github.com/noriah/pulsecat/input/ffmpeg"
	_ "github.com/noriah/pulsecat/input/stdinput"
	_ "github.com/noriah/pulsecat/input/synth"
)
