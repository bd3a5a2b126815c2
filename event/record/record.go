// Package record stores pulse events in a sqlite database so sessions can be
// charted later.
package record

import (
	"context"
	"database/sql"
	"time"

	"github.com/noriah/pulsecat/event"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bpm_records (
	record_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	pipeline    TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	bpm         DOUBLE NOT NULL,
	hz          DOUBLE NOT NULL,
	confidence  DOUBLE NOT NULL,
	valid       BOOLEAN NOT NULL,
	state       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS bpm_records_session ON bpm_records (session_id, recorded_at);
`

// Store is the database of recorded events.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	// one writer keeps sqlite from reporting busy
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a single event.
func (s *Store) Insert(ev event.Event) error {
	_, err := s.db.Exec(`INSERT INTO bpm_records
		(session_id, pipeline, recorded_at, bpm, hz, confidence, valid, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Session, ev.Pipeline, ev.Time.UnixMilli(),
		ev.BPM, ev.Hz, ev.Confidence, ev.Valid, ev.State)

	return errors.Wrap(err, "failed to insert record")
}

// Session summarises one recorded run.
type Session struct {
	ID      string
	Start   time.Time
	End     time.Time
	Records int
	MeanBPM float64
}

// Sessions lists recorded sessions, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`SELECT session_id, MIN(recorded_at), MAX(recorded_at),
		COUNT(*), AVG(bpm) FROM bpm_records
		GROUP BY session_id ORDER BY MIN(recorded_at)`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sessions")
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess       Session
			start, end int64
		)

		if err := rows.Scan(&sess.ID, &start, &end, &sess.Records, &sess.MeanBPM); err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}

		sess.Start = time.UnixMilli(start)
		sess.End = time.UnixMilli(end)
		out = append(out, sess)
	}

	return out, rows.Err()
}

// Records returns the events of a session in the order they were recorded.
func (s *Store) Records(session string) ([]event.Event, error) {
	rows, err := s.db.Query(`SELECT session_id, pipeline, recorded_at, bpm, hz,
		confidence, valid, state FROM bpm_records
		WHERE session_id = ? ORDER BY recorded_at, record_id`, session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			ev event.Event
			at int64
		)

		err := rows.Scan(&ev.Session, &ev.Pipeline, &at, &ev.BPM, &ev.Hz,
			&ev.Confidence, &ev.Valid, &ev.State)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}

		ev.Time = time.UnixMilli(at)
		out = append(out, ev)
	}

	return out, rows.Err()
}

// Recorder is an event.Emitter that writes to a Store off the pipeline
// goroutine. Events that do not fit in the queue are dropped.
type Recorder struct {
	store *Store
	queue chan event.Event
}

func NewRecorder(store *Store, size int) *Recorder {
	if size < 1 {
		size = 1
	}

	return &Recorder{store: store, queue: make(chan event.Event, size)}
}

func (r *Recorder) Emit(ev event.Event) {
	select {
	case r.queue <- ev:
	default:
		log.Debug().Str("pipeline", ev.Pipeline).Msg("record queue full, dropping event")
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)

		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(ev event.Event) {
	if err := r.store.Insert(ev); err != nil {
		log.Error().Err(err).Msg("failed to record event")
	}
}
