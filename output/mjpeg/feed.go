// Package mjpeg serves pipeline frames as MJPEG streams and pulse events over
// a websocket.
package mjpeg

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/noriah/pulsecat/frame"
	"github.com/pkg/errors"
)

// DefaultQuality is the JPEG quality of the stream.
const DefaultQuality = 80

const boundary = "frame"

// Feed is a processor output that serves its latest frame to every HTTP
// client as multipart/x-mixed-replace. Slow clients skip frames; the
// pipeline never waits on them.
type Feed struct {
	Quality int

	mu      sync.Mutex
	last    []byte
	clients map[chan []byte]struct{}
	buf     bytes.Buffer
}

func NewFeed() *Feed {
	return &Feed{
		Quality: DefaultQuality,
		clients: make(map[chan []byte]struct{}),
	}
}

// WriteFrame encodes f and hands it to the connected clients.
func (fd *Feed) WriteFrame(f *frame.Frame) error {
	fd.buf.Reset()
	if err := jpeg.Encode(&fd.buf, f.RGBA(), &jpeg.Options{Quality: fd.Quality}); err != nil {
		return errors.Wrap(err, "failed to encode jpeg")
	}

	jpg := append([]byte(nil), fd.buf.Bytes()...)

	fd.mu.Lock()
	defer fd.mu.Unlock()

	fd.last = jpg

	for ch := range fd.clients {
		// replace a frame the client has not picked up yet
		select {
		case <-ch:
		default:
		}
		ch <- jpg
	}

	return nil
}

// Clients returns the number of connected clients.
func (fd *Feed) Clients() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return len(fd.clients)
}

func (fd *Feed) subscribe() chan []byte {
	ch := make(chan []byte, 1)

	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.last != nil {
		ch <- fd.last
	}
	fd.clients[ch] = struct{}{}

	return ch
}

func (fd *Feed) unsubscribe(ch chan []byte) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	delete(fd.clients, ch)
}

func (fd *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)

	ch := fd.subscribe()
	defer fd.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return

		case jpg := <-ch:
			_, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				boundary, len(jpg))
			if err != nil {
				return
			}

			if _, err := w.Write(jpg); err != nil {
				return
			}

			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
