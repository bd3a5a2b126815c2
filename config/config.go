// Package config holds the settings of a pulsecat run.
package config

import (
	"fmt"
	"strings"

	"github.com/noriah/pulsecat/detect"
	"github.com/noriah/pulsecat/dsp"
	"github.com/noriah/pulsecat/dsp/window"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/processor"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, PULSECAT_ALPHA for alpha.
const EnvPrefix = "PULSECAT"

// Config is every setting of a run. The mapstructure names are the keys used
// in config files and, upper cased, in the environment.
type Config struct {
	// Backend is the backend name from list-backends
	Backend string `mapstructure:"backend"`
	// Device is the device name from list-devices
	Device string `mapstructure:"device"`

	FrameWidth   int `mapstructure:"frame_width"`
	FrameHeight  int `mapstructure:"frame_height"`
	RegionWidth  int `mapstructure:"region_width"`
	RegionHeight int `mapstructure:"region_height"`
	// Levels is how many times the region is halved before buffering
	Levels int `mapstructure:"levels"`

	// Alpha is the pulse amplification
	Alpha        float64 `mapstructure:"alpha"`
	MinFrequency float64 `mapstructure:"min_frequency"`
	MaxFrequency float64 `mapstructure:"max_frequency"`
	FrameRate    float64 `mapstructure:"frame_rate"`

	BufferSize    int `mapstructure:"buffer_size"`
	BPMBufferSize int `mapstructure:"bpm_buffer_size"`
	// BPMCadence is the number of frames between estimates
	BPMCadence int `mapstructure:"bpm_cadence"`

	// Measure is "magnitude" or "real", the bin strength of the estimate
	Measure       string `mapstructure:"measure"`
	Window        string `mapstructure:"window"`
	Workers       int    `mapstructure:"workers"`
	KeepSlotOrder bool   `mapstructure:"keep_slot_order"`

	Gate         bool    `mapstructure:"gate"`
	Detector     string  `mapstructure:"detector"`
	Cascade      string  `mapstructure:"cascade"`
	SkinFraction float64 `mapstructure:"skin_fraction"`

	Overlay string `mapstructure:"overlay"`
	Schema  string `mapstructure:"schema"`

	// Listen is the MJPEG server address, empty to not serve
	Listen string `mapstructure:"listen"`
	// PresenceFeed runs a second pipeline drawing the detector result
	PresenceFeed bool   `mapstructure:"presence_feed"`
	Terminal     bool   `mapstructure:"terminal"`
	RecordVideo  string `mapstructure:"record_video"`
	// RecordRaw records the frames as captured, before any drawing
	RecordRaw    string `mapstructure:"record_raw"`
	DB           string `mapstructure:"db"`
	NATS         string `mapstructure:"nats"`
	NATSSubject  string `mapstructure:"nats_subject"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// NewZeroConfig returns the defaults: a 320x240 capture at 15 fps with the
// pulse looked for between 60 and 120 BPM in the central 160x120.
func NewZeroConfig() Config {
	return Config{
		FrameWidth:    320,
		FrameHeight:   240,
		RegionWidth:   160,
		RegionHeight:  120,
		Levels:        3,
		Alpha:         170,
		MinFrequency:  1.0,
		MaxFrequency:  2.0,
		FrameRate:     15,
		BufferSize:    150,
		BPMBufferSize: 10,
		BPMCadence:    15,
		Measure:       "magnitude",
		Window:        "rectangle",
		Workers:       1,
		Detector:      "always",
		SkinFraction:  0.3,
		Overlay:       "pulse",
		Schema:        "full",
		Listen:        ":5000",
		NATSSubject:   "pulsecat.bpm",
		LogLevel:      "info",
	}
}

// Validate rejects settings no pipeline can run with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.FrameWidth < 1 || cfg.FrameHeight < 1:
		return errors.New("frame size must be positive")

	case cfg.RegionWidth < 1 || cfg.RegionHeight < 1:
		return errors.New("region size must be positive")

	case cfg.RegionWidth > cfg.FrameWidth || cfg.RegionHeight > cfg.FrameHeight:
		return fmt.Errorf("region %dx%d larger than frame %dx%d",
			cfg.RegionWidth, cfg.RegionHeight, cfg.FrameWidth, cfg.FrameHeight)

	case cfg.Levels < 1:
		return errors.New("levels must be at least 1")

	case cfg.RegionWidth < 1<<cfg.Levels || cfg.RegionHeight < 1<<cfg.Levels:
		return fmt.Errorf("region %dx%d too small for %d levels",
			cfg.RegionWidth, cfg.RegionHeight, cfg.Levels)

	case cfg.FrameRate <= 0:
		return errors.New("frame rate must be positive")

	case cfg.MinFrequency >= cfg.MaxFrequency:
		return errors.New("min frequency must be below max frequency")

	case cfg.BufferSize < 2:
		return errors.New("buffer size too small (2+ required)")

	case cfg.BPMBufferSize < 1:
		return errors.New("bpm buffer size must be at least 1")

	case cfg.BPMCadence < 1:
		return errors.New("bpm cadence must be at least 1")

	case cfg.Workers < 1:
		return errors.New("workers must be at least 1")
	}

	if _, err := dsp.NewPassband(cfg.FrameRate, cfg.BufferSize, cfg.MinFrequency, cfg.MaxFrequency); err != nil {
		return err
	}

	if _, err := dsp.LookupMeasure(cfg.Measure); err != nil {
		return err
	}

	if _, err := window.Lookup(cfg.Window); err != nil {
		return err
	}

	if !contains(detect.Names(), cfg.Detector) {
		return fmt.Errorf("unknown detector %q (have %s)", cfg.Detector, strings.Join(detect.Names(), ", "))
	}

	if _, err := processor.ParseOverlay(cfg.Overlay); err != nil {
		return err
	}

	if _, err := event.ParseSchema(cfg.Schema); err != nil {
		return err
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("device", cfg.Device)
	v.SetDefault("frame_width", cfg.FrameWidth)
	v.SetDefault("frame_height", cfg.FrameHeight)
	v.SetDefault("region_width", cfg.RegionWidth)
	v.SetDefault("region_height", cfg.RegionHeight)
	v.SetDefault("levels", cfg.Levels)
	v.SetDefault("alpha", cfg.Alpha)
	v.SetDefault("min_frequency", cfg.MinFrequency)
	v.SetDefault("max_frequency", cfg.MaxFrequency)
	v.SetDefault("frame_rate", cfg.FrameRate)
	v.SetDefault("buffer_size", cfg.BufferSize)
	v.SetDefault("bpm_buffer_size", cfg.BPMBufferSize)
	v.SetDefault("bpm_cadence", cfg.BPMCadence)
	v.SetDefault("measure", cfg.Measure)
	v.SetDefault("window", cfg.Window)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("keep_slot_order", cfg.KeepSlotOrder)
	v.SetDefault("gate", cfg.Gate)
	v.SetDefault("detector", cfg.Detector)
	v.SetDefault("cascade", cfg.Cascade)
	v.SetDefault("skin_fraction", cfg.SkinFraction)
	v.SetDefault("overlay", cfg.Overlay)
	v.SetDefault("schema", cfg.Schema)
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("presence_feed", cfg.PresenceFeed)
	v.SetDefault("terminal", cfg.Terminal)
	v.SetDefault("record_video", cfg.RecordVideo)
	v.SetDefault("record_raw", cfg.RecordRaw)
	v.SetDefault("db", cfg.DB)
	v.SetDefault("nats", cfg.NATS)
	v.SetDefault("nats_subject", cfg.NATSSubject)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_json", cfg.LogJSON)
}

// Load starts from the defaults, applies the file at path if path is not
// empty, then the PULSECAT_ environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, NewZeroConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to decode configuration")
	}

	return cfg, nil
}
