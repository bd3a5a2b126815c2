package fanout

import (
	"context"
	"sync"
	"testing"

	"github.com/noriah/pulsecat/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	frame *frame.Frame
	n     int
	limit int
}

func (c *counter) Next() (*frame.Frame, bool) {
	if c.n >= c.limit {
		return nil, false
	}
	c.frame.Pix[0] = uint8(c.n)
	c.n++
	return c.frame, true
}

func (c *counter) Err() error   { return nil }
func (c *counter) Close() error { return nil }

func TestTeeDeliversEveryFrameToEveryBranch(t *testing.T) {
	src := &counter{frame: frame.New(2, 2), limit: 20}
	tee := New(src, 3)

	branches := tee.Branches()
	got := make([][]uint8, len(branches))

	var wg sync.WaitGroup
	for i, b := range branches {
		b := b
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				f, ok := b.Next()
				if !ok {
					return
				}
				got[i] = append(got[i], f.Pix[0])
			}
		}(i)
	}

	require.NoError(t, tee.Run(context.Background()))
	wg.Wait()

	for i := range got {
		require.Len(t, got[i], 20)
		for n, v := range got[i] {
			assert.Equal(t, uint8(n), v)
		}
		assert.NoError(t, branches[i].Err())
	}
}

func TestTeeStopsWhenBranchesClose(t *testing.T) {
	src := &counter{frame: frame.New(1, 1), limit: 1 << 30}
	tee := New(src, 1)
	b := tee.Branches()[0]

	go func() {
		for i := 0; i < 5; i++ {
			_, ok := b.Next()
			assert.True(t, ok)
		}
		b.Close()
	}()

	require.NoError(t, tee.Run(context.Background()))
	assert.Less(t, src.n, 10)
}
