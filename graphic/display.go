// Package graphic draws on frames and shows them in the terminal.
package graphic

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/util"
	"github.com/pkg/errors"
)

const (
	// HalfBlock is drawn in every cell; the foreground paints the upper
	// pixel and the background the lower one.
	HalfBlock rune = '▀'

	// TrendWindow is how many estimates the status trend covers.
	TrendWindow = 10

	// TrendDumpPercent is how much of the trend we erase on a jump
	TrendDumpPercent = 0.75

	// TrendResetDeviation standard deviations from the mean before reset
	TrendResetDeviation = 2

	// TrendMinDeviation keeps a very steady trend from resetting on noise.
	TrendMinDeviation = 3
)

var styleStatus = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)

// Display renders frames with half blocks and keeps a status line with the
// latest estimate under them.
type Display struct {
	screen  tcell.Screen
	restore func()

	mu    sync.Mutex
	trend *util.MovingWindow
	last  event.Event
	seen  bool
}

func NewDisplay() *Display {
	return &Display{trend: util.NewMovingWindow(TrendWindow)}
}

// Init opens the terminal.
func (d *Display) Init() error {
	restore, err := normalizeTerminal()
	if err != nil {
		return errors.Wrap(err, "failed to prepare terminal")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		restore()
		return errors.Wrap(err, "failed to open terminal")
	}

	d.restore = restore

	return d.InitScreen(screen)
}

// InitScreen uses screen instead of the terminal.
func (d *Display) InitScreen(screen tcell.Screen) error {
	if err := screen.Init(); err != nil {
		return errors.Wrap(err, "failed to init screen")
	}

	screen.DisableMouse()
	screen.HideCursor()

	d.screen = screen

	return nil
}

// Start watches for key presses. The returned context is cancelled when the
// user quits.
func (d *Display) Start(ctx context.Context) context.Context {
	dispCtx, dispCancel := context.WithCancel(ctx)
	go eventPoller(dispCtx, dispCancel, d)
	return dispCtx
}

func eventPoller(ctx context.Context, fn context.CancelFunc, d *Display) {
	defer fn()

	for {
		// first check if we need to exit
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := d.screen.PollEvent()
		if ev == nil {
			return
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyRune:
				switch ev.Rune() {
				case 'q', 'Q':
					return
				}

			case tcell.KeyCtrlC, tcell.KeyEscape:
				return
			}

		case *tcell.EventResize:
			d.screen.Sync()
		}
	}
}

// Close will stop display and clean up the terminal
func (d *Display) Close() error {
	if d.screen != nil {
		d.screen.Fini()
	}

	if d.restore != nil {
		d.restore()
	}

	return nil
}

// Emit updates the status line.
func (d *Display) Emit(ev event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last, d.seen = ev, true

	if !ev.Valid {
		return
	}

	if length := d.trend.Len(); length >= d.trend.Cap()/2 {
		mean, sd := d.trend.Stats()
		if math.Abs(ev.BPM-mean) > math.Max(TrendResetDeviation*sd, TrendMinDeviation) {
			d.trend.Drop(int(float64(length) * TrendDumpPercent))
		}
	}

	d.trend.Update(ev.BPM)
}

func (d *Display) status() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.seen {
		return "waiting for pulse  [q] quit"
	}

	mean, sd := d.trend.Stats()

	return fmt.Sprintf("%s  BPM %d  trend %.1f±%.1f  conf %.2f  %s  [q] quit",
		d.last.Pipeline, int(d.last.BPM), mean, sd, d.last.Confidence, d.last.State)
}

// WriteFrame draws f as large as it fits above the status line.
func (d *Display) WriteFrame(f *frame.Frame) error {
	if d.screen == nil {
		return errors.New("display not initialised")
	}

	d.screen.Clear()

	width, height := d.screen.Size()
	rows := height - 1

	if rows > 0 && f.Width > 0 && f.Height > 0 {
		scale := math.Min(float64(width)/float64(f.Width), float64(rows*2)/float64(f.Height))

		cols := int(float64(f.Width) * scale)
		lines := int(float64(f.Height)*scale) / 2
		xOff := (width - cols) / 2
		yOff := (rows - lines) / 2

		for y := 0; y < lines; y++ {
			for x := 0; x < cols; x++ {
				top := cellColor(f, x, 2*y, scale)
				bot := cellColor(f, x, 2*y+1, scale)

				d.screen.SetContent(xOff+x, yOff+y, HalfBlock, nil,
					tcell.StyleDefault.Foreground(top).Background(bot))
			}
		}
	}

	for x, r := range []rune(d.status()) {
		if x >= width {
			break
		}
		d.screen.SetContent(x, height-1, r, nil, styleStatus)
	}

	d.screen.Show()

	return nil
}

func cellColor(f *frame.Frame, x, y int, scale float64) tcell.Color {
	px := int(float64(x) / scale)
	py := int(float64(y) / scale)

	if px >= f.Width {
		px = f.Width - 1
	}

	if py >= f.Height {
		py = f.Height - 1
	}

	off := f.PixOffset(px, py)

	return tcell.NewRGBColor(int32(f.Pix[off+2]), int32(f.Pix[off+1]), int32(f.Pix[off]))
}
