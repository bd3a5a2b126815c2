package mjpeg

import (
	"encoding/json"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/noriah/pulsecat/event"
	"github.com/noriah/pulsecat/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedStreamsJPEG(t *testing.T) {
	s := NewServer(":0", event.SchemaFull)
	fd := s.Feed("/video_feed")

	f := frame.New(32, 24)
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i+1] = 200
	}
	require.NoError(t, fd.WriteFrame(f))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/video_feed")
	require.NoError(t, err)
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)

	part, err := multipart.NewReader(resp.Body, params["boundary"]).NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))

	img, err := jpeg.Decode(part)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	_, g, _, _ := img.At(10, 10).RGBA()
	assert.InDelta(t, 200, g>>8, 8)
}

func TestIndexListsFeeds(t *testing.T) {
	s := NewServer(":0", event.SchemaFull)
	s.Feed("/video_feed")
	s.Feed("/presence_feed")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `src="/presence_feed"`)
	assert.Contains(t, string(body), `src="/video_feed"`)

	resp, err = http.Get(srv.URL + "/nothing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubPushesEvents(t *testing.T) {
	s := NewServer(":0", event.SchemaCompact)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	s.Hub().Emit(event.Event{Pipeline: "main", BPM: 72.4})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 72.0, got["bpm"])
	assert.Equal(t, "main", got["pipeline"])
}

func TestHubWithoutClients(t *testing.T) {
	h := NewHub(event.SchemaFull)
	assert.NotPanics(t, func() { h.Emit(event.Event{}) })
	assert.Zero(t, h.Len())
}
