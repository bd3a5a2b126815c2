package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/noriah/pulsecat"
	"github.com/noriah/pulsecat/config"
	"github.com/noriah/pulsecat/dsp"
	"github.com/noriah/pulsecat/event/record"
	"github.com/noriah/pulsecat/input"
	"github.com/noriah/pulsecat/report"

	_ "github.com/noriah/pulsecat/input/all"

	"github.com/integrii/flaggy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AppName is the app name
const AppName = "pulsecat"

// AppDesc is the app description
const AppDesc = "Pulse Under Light Showing Eulerian Colour Amplification Tracker"

// AppSite is the app website
const AppSite = "https://github.com/noriah/pulsecat"

var version = "unknown"

func main() {
	cfg, err := config.Load(configPath(os.Args[1:]))
	if err != nil {
		setupLogging("info", false)
		chk(err, "failed to load config")
	}

	if doFlags(&cfg) {
		return
	}

	cfg.Backend = resolveBackend(cfg.Backend, input.DefaultBackend())

	chk(cfg.Validate(), "invalid config")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chk(pulsecat.Run(ctx, &cfg), "failed to run pulsecat")
}

func doFlags(cfg *config.Config) bool {
	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.AdditionalHelpPrepend = AppSite
	parser.Version = version

	listBackendsCmd := flaggy.Subcommand{
		Name:        "list-backends",
		ShortName:   "lb",
		Description: "list all supported backends",
	}

	parser.AttachSubcommand(&listBackendsCmd, 1)

	listDevicesCmd := flaggy.Subcommand{
		Name:                 "list-devices",
		ShortName:            "ld",
		Description:          "list all devices for a backend",
		AdditionalHelpAppend: "\nbackends that read files or urls take those as the device too",
	}

	parser.AttachSubcommand(&listDevicesCmd, 1)

	var (
		reportOut     = "pulsecat.html"
		reportSession []string
	)

	reportCmd := flaggy.Subcommand{
		Name:        "report",
		ShortName:   "rp",
		Description: "chart recorded sessions as html",
	}
	reportCmd.String(&reportOut, "o", "out", "html file to write")
	reportCmd.StringSlice(&reportSession, "s", "session", "session id to chart (repeatable, default all)")

	parser.AttachSubcommand(&reportCmd, 1)

	// read again by configPath before flags are parsed
	var configFile string
	parser.String(&configFile, "c", "config", "config file (yaml, toml or json)")

	parser.String(&cfg.Backend, "b", "backend", "backend name")
	parser.String(&cfg.Device, "d", "device", "device name, file or url")
	parser.Int(&cfg.FrameWidth, "fw", "width", "frame width")
	parser.Int(&cfg.FrameHeight, "fh", "height", "frame height")
	parser.Int(&cfg.RegionWidth, "rw", "region-width", "detection region width")
	parser.Int(&cfg.RegionHeight, "rh", "region-height", "detection region height")
	parser.Int(&cfg.Levels, "l", "levels", "pyramid levels")
	parser.Float64(&cfg.Alpha, "a", "alpha", "pulse amplification")
	parser.Float64(&cfg.MinFrequency, "lo", "min-frequency", "passband low edge in Hz")
	parser.Float64(&cfg.MaxFrequency, "hi", "max-frequency", "passband high edge in Hz")
	parser.Float64(&cfg.FrameRate, "r", "fps", "frames per second")
	parser.Int(&cfg.BufferSize, "n", "buffer", "frames in the rolling buffer")
	parser.Int(&cfg.BPMBufferSize, "hn", "bpm-buffer", "estimates averaged into the bpm")
	parser.Int(&cfg.BPMCadence, "e", "cadence", "frames between estimates")
	parser.String(&cfg.Measure, "m", "measure", "bin strength ("+strings.Join(dsp.MeasureNames(), ", ")+")")
	parser.String(&cfg.Window, "w", "window", "temporal window function")
	parser.Int(&cfg.Workers, "t", "workers", "filter goroutines")
	parser.Bool(&cfg.KeepSlotOrder, "so", "slot-order", "transform the buffer in slot order")
	parser.Bool(&cfg.Gate, "g", "gate", "reset the buffer when the subject is lost")
	parser.String(&cfg.Detector, "dt", "detector", "presence detector")
	parser.String(&cfg.Cascade, "cc", "cascade", "haar cascade file for the cascade detector")
	parser.Float64(&cfg.SkinFraction, "sk", "skin-fraction", "skin share of the region that counts as present")
	parser.String(&cfg.Overlay, "ov", "overlay", "annotation style (pulse, presence, plain)")
	parser.String(&cfg.Schema, "sc", "schema", "event schema (full, compact)")
	parser.String(&cfg.Listen, "L", "listen", "mjpeg server address, empty to disable")
	parser.Bool(&cfg.PresenceFeed, "pf", "presence-feed", "serve the detector result on /presence_feed")
	parser.Bool(&cfg.Terminal, "T", "terminal", "draw the output in the terminal")
	parser.String(&cfg.RecordVideo, "rv", "record-video", "record the annotated video to a file")
	parser.String(&cfg.RecordRaw, "rr", "record-raw", "record the captured video, without annotation, to a file")
	parser.String(&cfg.DB, "db", "db", "sqlite database for bpm records")
	parser.String(&cfg.NATS, "ns", "nats", "nats server url")
	parser.String(&cfg.NATSSubject, "nsub", "nats-subject", "nats subject for bpm events")
	parser.String(&cfg.LogLevel, "ll", "log-level", "log level (trace, debug, info, warn, error)")
	parser.Bool(&cfg.LogJSON, "lj", "log-json", "log json to stderr")

	chk(parser.Parse(), "failed to parse arguments")

	setupLogging(cfg.LogLevel, cfg.LogJSON)

	switch {
	case listBackendsCmd.Used:
		def := input.DefaultBackend()
		for _, backend := range input.Backends {
			star := ' '
			if backend.Name == def {
				star = '*'
			}

			fmt.Printf("- %s %c\n", backend.Name, star)
		}

		return true

	case listDevicesCmd.Used:
		cfg.Backend = resolveBackend(cfg.Backend, input.DefaultBackend())

		backend, err := input.InitBackend(cfg.Backend)
		chk(err, "failed to init backend")
		defer backend.Close()

		devices, err := backend.Devices()
		chk(err, "failed to get devices")

		// We don't really need the default device to be indicated.
		defaultDevice, _ := backend.DefaultDevice()

		fmt.Printf("all devices for %q backend. '*' marks default\n", cfg.Backend)

		for idx := range devices {
			star := ' '
			if defaultDevice != nil && devices[idx].String() == defaultDevice.String() {
				star = '*'
			}

			fmt.Printf("- %v %c\n", devices[idx], star)
		}

		return true

	case reportCmd.Used:
		chk(writeReport(cfg.DB, reportOut, reportSession), "failed to write report")
		return true
	}

	return false
}

func writeReport(db, out string, sessions []string) error {
	if db == "" {
		return fmt.Errorf("no database given; use --db")
	}

	store, err := record.Open(db)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}

	if err := report.Render(f, store, sessions...); err != nil {
		f.Close()
		return err
	}

	log.Info().Str("file", out).Msg("report written")

	return f.Close()
}

// resolveBackend returns name, or fallback when no backend was asked for. The
// synth fallback makes up its pulse, so falling back to it is logged loudly.
func resolveBackend(name, fallback string) string {
	if name != "" {
		return name
	}

	if fallback == "synth" {
		log.Warn().Msg("no camera backend found (ffmpeg or gocv); using the synth backend, " +
			"every BPM reported is generated. Pass --backend to choose one")
	}

	return fallback
}

// configPath finds --config before the flags are parsed, so that flags given
// on the command line override the file.
func configPath(args []string) string {
	for i, arg := range args {
		for _, name := range []string{"-c", "--config"} {
			switch {
			case arg == name && i+1 < len(args):
				return args[i+1]
			case strings.HasPrefix(arg, name+"="):
				return strings.TrimPrefix(arg, name+"=")
			}
		}
	}

	return ""
}

func setupLogging(level string, jsonOut bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if jsonOut {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

func chk(err error, wrap string) {
	if err != nil {
		log.Fatal().Err(err).Msg(wrap)
	}
}
