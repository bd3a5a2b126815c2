package mjpeg

import (
	"context"
	"html/template"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/noriah/pulsecat/event"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownWait = 5 * time.Second

var index = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>pulsecat</title></head>
<body style="background:#111;color:#0f0;font-family:monospace">
<h1 id="bpm">BPM: -</h1>
{{range .}}<p>{{.}}</p><img src="{{.}}">
{{end}}
<script>
var ws = new WebSocket((location.protocol == "https:" ? "wss://" : "ws://") + location.host + "/events");
ws.onmessage = function (m) {
	var ev = JSON.parse(m.data);
	document.getElementById("bpm").textContent = "BPM: " + Math.floor(ev.bpm);
};
</script>
</body>
</html>
`))

// Server serves feeds and the event websocket on one address.
type Server struct {
	addr string
	mux  *http.ServeMux
	hub  *Hub

	mu    sync.Mutex
	feeds []string
}

// NewServer returns a server with the event websocket at /events and an
// index page at /.
func NewServer(addr string, schema event.Schema) *Server {
	s := &Server{
		addr: addr,
		mux:  http.NewServeMux(),
		hub:  NewHub(schema),
	}

	s.mux.Handle("/events", s.hub)
	s.mux.HandleFunc("/", s.serveIndex)

	return s
}

// Feed adds a stream at path, such as /video_feed.
func (s *Server) Feed(path string) *Feed {
	fd := NewFeed()

	s.mu.Lock()
	s.feeds = append(s.feeds, path)
	sort.Strings(s.feeds)
	s.mu.Unlock()

	s.mux.Handle(path, fd)

	return fd
}

// Hub returns the event websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	feeds := append([]string(nil), s.feeds...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := index.Execute(w, feeds); err != nil {
		log.Debug().Err(err).Msg("failed to render index")
	}
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}

	srv := &http.Server{
		Handler: s.mux,
		// streams watch their request context, so they end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("serving video")

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")

	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}

	return nil
}
