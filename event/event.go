// Package event carries pulse estimates out of a pipeline.
//
// Emitters are fire-and-forget: Emit must return promptly and never fail the
// pipeline. Emitters that talk to something slow queue internally and drop
// events when their queue is full.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Event is one pulse estimate.
type Event struct {
	Session    string    `json:"session"`
	Pipeline   string    `json:"pipeline"`
	Time       time.Time `json:"time"`
	BPM        float64   `json:"bpm"` // smoothed over the history
	Cursor     int       `json:"cursor"`
	Hz         float64   `json:"hz"` // dominant frequency of this estimate
	Confidence float64   `json:"confidence"`
	Valid      bool      `json:"valid"`
	State      string    `json:"state"`
}

// Emitter receives events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(Event)

func (fn EmitterFunc) Emit(ev Event) {
	fn(ev)
}

// Multi sends every event to each of its emitters in order.
type Multi []Emitter

func (m Multi) Emit(ev Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Schema selects the payload encoding of an event.
type Schema int

const (
	// SchemaFull encodes every field.
	SchemaFull Schema = iota
	// SchemaCompact encodes only the pipeline, unix milliseconds and whole BPM.
	SchemaCompact
)

func (s Schema) String() string {
	switch s {
	case SchemaFull:
		return "full"
	case SchemaCompact:
		return "compact"
	default:
		return fmt.Sprintf("Schema(%d)", int(s))
	}
}

// ParseSchema parses "full" or "compact".
func ParseSchema(name string) (Schema, error) {
	switch name {
	case "full", "":
		return SchemaFull, nil
	case "compact":
		return SchemaCompact, nil
	default:
		return SchemaFull, fmt.Errorf("unknown event schema %q", name)
	}
}

type compact struct {
	Pipeline string `json:"pipeline"`
	Time     int64  `json:"time"`
	BPM      int    `json:"bpm"`
}

// Marshal encodes ev as JSON in schema s.
func (s Schema) Marshal(ev Event) ([]byte, error) {
	if s == SchemaCompact {
		return json.Marshal(compact{
			Pipeline: ev.Pipeline,
			Time:     ev.Time.UnixMilli(),
			BPM:      int(ev.BPM),
		})
	}

	return json.Marshal(ev)
}

// Log writes events to a zerolog logger.
type Log struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

func (l Log) Emit(ev Event) {
	l.Logger.WithLevel(l.Level).
		Str("pipeline", ev.Pipeline).
		Int("cursor", ev.Cursor).
		Float64("hz", ev.Hz).
		Float64("bpm", ev.BPM).
		Float64("confidence", ev.Confidence).
		Bool("valid", ev.Valid).
		Str("state", ev.State).
		Msg("pulse")
}
