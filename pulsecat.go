// Package pulsecat estimates a pulse rate from video by amplifying the small
// colour changes blood flow makes in the skin.
package pulsecat

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/noriah/pulsecat/config"
	"github.com/noriah/pulsecat/detect"
	"github.com/noriah/pulsecat/dsp"
	"github.com/noriah/pulsecat/dsp/window"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/event/natsemit"
	"github.com/noriah/pulsecat/event/record"
	"github.com/noriah/pulsecat/frame"
	"github.com/noriah/pulsecat/graphic"
	"github.com/noriah/pulsecat/input"
	"github.com/noriah/pulsecat/input/fanout"
	"github.com/noriah/pulsecat/output/ffmpeg"
	"github.com/noriah/pulsecat/output/mjpeg"
	"github.com/noriah/pulsecat/processor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// recordQueue is how many events may wait for the database.
const recordQueue = 64

// Run opens the capture source from cfg and runs the pipelines until the
// source ends or ctx is done.
//
// The main pipeline amplifies the pulse and feeds every enabled output and
// event sink. With PresenceFeed set a second pipeline shares the source and
// draws the detector result on /presence_feed.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	schema, _ := event.ParseSchema(cfg.Schema)
	session := uuid.NewString()

	backend, err := input.InitBackend(cfg.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()

	device, err := input.GetDevice(backend, cfg.Device)
	if err != nil {
		return err
	}

	log.Info().
		Str("session", session).
		Str("backend", cfg.Backend).
		Stringer("device", device).
		Msg("starting")

	var (
		outputs  processor.Outputs
		presence processor.Output
		emitters = event.Multi{event.Log{Logger: log.Logger, Level: zerolog.DebugLevel}}
	)

	if cfg.Terminal {
		display := graphic.NewDisplay()
		if err := display.Init(); err != nil {
			return err
		}
		defer display.Close()

		ctx = display.Start(ctx)
		outputs = append(outputs, display)
		emitters = append(emitters, display)
	}

	if cfg.RecordVideo != "" {
		w, err := startRecording(ctx, cfg, cfg.RecordVideo)
		if err != nil {
			return err
		}
		defer finish(w)

		outputs = append(outputs, w)
	}

	var raw processor.Output
	if cfg.RecordRaw != "" {
		w, err := startRecording(ctx, cfg, cfg.RecordRaw)
		if err != nil {
			return err
		}
		defer finish(w)

		raw = w
	}

	if cfg.NATS != "" {
		nc, err := natsemit.Connect(cfg.NATS)
		if err != nil {
			return err
		}
		defer nc.Drain()

		emitters = append(emitters, natsemit.New(nc, cfg.NATSSubject, schema))
	}

	svcCtx, stopServices := context.WithCancel(ctx)
	defer stopServices()

	services, svcCtx := errgroup.WithContext(svcCtx)

	if cfg.DB != "" {
		store, err := record.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		rec := record.NewRecorder(store, recordQueue)
		services.Go(func() error { return rec.Run(svcCtx) })
		emitters = append(emitters, rec)
	}

	if cfg.Listen != "" {
		srv := mjpeg.NewServer(cfg.Listen, schema)
		outputs = append(outputs, srv.Feed("/video_feed"))
		if cfg.PresenceFeed {
			presence = srv.Feed("/presence_feed")
		}

		services.Go(func() error { return srv.Run(svcCtx) })
		emitters = append(emitters, srv.Hub())
	}

	pipes, pipeCtx := errgroup.WithContext(svcCtx)

	src, err := backend.Start(pipeCtx, input.SessionConfig{
		Device:    device,
		Width:     cfg.FrameWidth,
		Height:    cfg.FrameHeight,
		FrameRate: cfg.FrameRate,
	})
	if err != nil {
		stopServices()
		services.Wait()
		return errors.Wrap(err, "failed to start the input backend")
	}

	primary := pipeline{Name: "main", Overlay: cfg.Overlay, Output: outputs, Raw: raw, Emitter: emitters}
	pipelines := []pipeline{primary}

	if presence != nil {
		pipelines = append(pipelines, pipeline{
			Name:       "presence",
			Overlay:    processor.OverlayPresence.String(),
			DetectOnly: true,
			Output:     presence,
			Emitter:    event.Discard,
		})
	}

	// each pipeline closes its own source; the tee closes src
	sources := []input.Source{src}
	if len(pipelines) > 1 {
		tee := fanout.New(src, len(pipelines))
		sources = tee.Branches()
		pipes.Go(func() error { return tee.Run(pipeCtx) })
	}

	for i, pl := range pipelines {
		i := i
		proc, det, err := newProcessor(cfg, session, pl, sources[i])
		if err != nil {
			for _, s := range sources[i:] {
				s.Close()
			}
			stopServices()
			pipes.Wait()
			services.Wait()
			return err
		}

		pipes.Go(func() error {
			defer sources[i].Close()
			if c, ok := det.(io.Closer); ok {
				defer c.Close()
			}
			return proc.Run(pipeCtx)
		})
	}

	err = pipes.Wait()
	stopServices()

	if serr := services.Wait(); err == nil {
		err = serr
	}

	log.Info().Str("session", session).Msg("finished")

	return err
}

type pipeline struct {
	Name       string
	Overlay    string
	DetectOnly bool
	Output     processor.Output
	Raw        processor.Output
	Emitter    event.Emitter
}

// startRecording starts an ffmpeg recording of frame sized video at path. It is
// finished by Close, not by cancellation of ctx.
func startRecording(ctx context.Context, cfg *config.Config, path string) (*ffmpeg.Writer, error) {
	return ffmpeg.Start(context.WithoutCancel(ctx), ffmpeg.Config{
		Path:      path,
		Width:     cfg.FrameWidth,
		Height:    cfg.FrameHeight,
		FrameRate: cfg.FrameRate,
	})
}

func finish(w *ffmpeg.Writer) {
	if err := w.Close(); err != nil {
		log.Error().Err(err).Msg("failed to finish recording")
	}
}

func newProcessor(cfg *config.Config, session string, pl pipeline, src input.Source) (*processor.Processor, detect.Detector, error) {
	measure, err := dsp.LookupMeasure(cfg.Measure)
	if err != nil {
		return nil, nil, err
	}

	windower, err := window.Lookup(cfg.Window)
	if err != nil {
		return nil, nil, err
	}

	overlay, err := processor.ParseOverlay(pl.Overlay)
	if err != nil {
		return nil, nil, err
	}

	// detectors keep scratch space, so every pipeline gets its own
	detector, err := detect.New(cfg.Detector, detect.Options{
		Cascade:  cfg.Cascade,
		Fraction: cfg.SkinFraction,
	})
	if err != nil {
		return nil, nil, err
	}

	proc, err := processor.New(processor.Config{
		Name:          pl.Name,
		Session:       session,
		FrameWidth:    cfg.FrameWidth,
		FrameHeight:   cfg.FrameHeight,
		Region:        frame.Centered(cfg.FrameWidth, cfg.FrameHeight, cfg.RegionWidth, cfg.RegionHeight),
		Levels:        cfg.Levels,
		Alpha:         cfg.Alpha,
		FrameRate:     cfg.FrameRate,
		MinFrequency:  cfg.MinFrequency,
		MaxFrequency:  cfg.MaxFrequency,
		BufferSize:    cfg.BufferSize,
		BPMBufferSize: cfg.BPMBufferSize,
		BPMCadence:    cfg.BPMCadence,
		Measure:       measure,
		Windower:      windower,
		Workers:       cfg.Workers,
		KeepSlotOrder: cfg.KeepSlotOrder,
		Gate:          cfg.Gate,
		DetectOnly:    pl.DetectOnly,
		Overlay:       overlay,
		Detector:      detector,
		Source:        src,
		Output:        pl.Output,
		Raw:           pl.Raw,
		Emitter:       pl.Emitter,
	})

	return proc, detector, err
}
