package pulsecat

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/noriah/pulsecat/config"
	"github.com/noriah/pulsecat/input"
	"github.com/noriah/pulsecat/input/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrames = 20

var closes atomic.Int32

func init() {
	input.RegisterBackend("counted", countedBackend{})
}

// countedBackend hands out short synth streams and counts how often they are
// closed.
type countedBackend struct {
	synth.Backend
}

func (b countedBackend) Start(ctx context.Context, cfg input.SessionConfig) (input.Source, error) {
	return &countedSource{Source: synth.NewSource(ctx, synth.Config{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		BPM:       72,
		Amplitude: 2,
		Frames:    testFrames,
	})}, nil
}

type countedSource struct {
	*synth.Source
}

func (s *countedSource) Close() error {
	closes.Add(1)
	return s.Source.Close()
}

func TestRunClosesSourceOnce(t *testing.T) {
	for _, tc := range []struct {
		name     string
		listen   string
		presence bool
	}{
		{"single pipeline", "", false},
		{"with presence feed", "127.0.0.1:0", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			closes.Store(0)

			cfg := config.NewZeroConfig()
			cfg.Backend = "counted"
			cfg.Listen = tc.listen
			cfg.PresenceFeed = tc.presence

			require.NoError(t, Run(context.Background(), &cfg))
			assert.Equal(t, int32(1), closes.Load())
		})
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewZeroConfig()
	cfg.Backend = "counted"
	cfg.Levels = 0

	assert.Error(t, Run(context.Background(), &cfg))
}
