// Package natsemit publishes pulse events on a NATS subject.
package natsemit

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/noriah/pulsecat/event"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is where events go unless told otherwise.
const DefaultSubject = "pulsecat.bpm"

// Publisher is the part of *nats.Conn the emitter uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials url with reconnects that never give up.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("pulsecat"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}

	return nc, nil
}

// Emitter publishes each event as JSON. The nats client buffers publishes
// itself, so Emit does not wait on the network.
type Emitter struct {
	pub     Publisher
	subject string
	schema  event.Schema
}

func New(pub Publisher, subject string, schema event.Schema) *Emitter {
	if subject == "" {
		subject = DefaultSubject
	}

	return &Emitter{pub: pub, subject: subject, schema: schema}
}

func (e *Emitter) Emit(ev event.Event) {
	data, err := e.schema.Marshal(ev)
	if err != nil {
		log.Debug().Err(err).Msg("dropping event, encode failed")
		return
	}

	if err := e.pub.Publish(e.subject, data); err != nil {
		log.Debug().Err(err).Str("subject", e.subject).Msg("dropping event")
	}
}
