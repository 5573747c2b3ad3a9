package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/models"
	"github.com/rob102-staff/nav-app/scene"
	"github.com/rob102-staff/nav-app/server/fastview"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeScene struct {
	mu       sync.Mutex
	loaded   map[string]*models.OccupancyMap
	commands chan string
	left     []uuid.UUID
	frames   chan fastview.Frame
	stopped  bool
}

func newFakeScene() *fakeScene {
	return &fakeScene{
		loaded:   map[string]*models.OccupancyMap{},
		commands: make(chan string, 8),
		frames:   make(chan fastview.Frame, 8),
	}
}

func (s *fakeScene) Join(ctx context.Context) (uuid.UUID, <-chan fastview.Frame, error) {
	return uuid.New(), s.frames, nil
}

func (s *fakeScene) Leave(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, id)
}

func (s *fakeScene) HandleCommand(ctx context.Context, data []byte) error {
	s.commands <- string(data)
	return nil
}

func (s *fakeScene) LoadMap(ctx context.Context, name string, m *models.OccupancyMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return scene.ErrStopped
	}
	s.loaded[name] = m
	return nil
}

func (s *fakeScene) Status(ctx context.Context) (scene.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return scene.Status{}, scene.ErrStopped
	}
	st := scene.Status{Algo: "pfield", Connection: "open"}
	for name, m := range s.loaded {
		st.MapName, st.MapLoaded, st.Width, st.Height = name, true, m.Width, m.Height
	}
	return st, nil
}

func (s *fakeScene) Snapshot(ctx context.Context) (*image.NRGBA, error) {
	if s.stopped {
		return nil, errors.New("stopped")
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

func uploadRequest(field, name, body string) *http.Request {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, _ := form.CreateFormFile(field, name)
	_, _ = part.Write([]byte(body))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/map", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func TestServer(t *testing.T) {
	Convey("Server tests", t, func() {
		sc := newFakeScene()
		server, err := NewServer(":0", config.Default(), sc)
		So(err, ShouldBeNil)
		handler := server.Handler()

		Convey("The index page carries every layer and page element", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)

			page := rec.Body.String()
			for _, name := range []string{scene.LayerMap, scene.LayerField, scene.LayerVisited, scene.LayerMarked} {
				So(page, ShouldContainSubstring, `id="`+layerID(name)+`"`)
			}
			for _, id := range []string{
				scene.EleRobot, scene.EleHeading, scene.EleStatus, scene.EleConnection,
				scene.EleMapName, scene.EleGoal, scene.EleAlgo, scene.ElePlayback,
			} {
				So(page, ShouldContainSubstring, `id="`+id+`"`)
			}
			So(page, ShouldContainSubstring, `<option value="PFIELD" selected>Potential Field</option>`)
			So(page, ShouldContainSubstring, `width="800"`)
		})

		Convey("Unknown routes and methods are refused", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)

			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("An uploaded map is loaded into the scene", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, uploadRequest("file", "tiny.map", "0 0 2 1 0.05\n0 10\n"))
			So(rec.Code, ShouldEqual, http.StatusOK)

			So(sc.loaded, ShouldContainKey, "tiny.map")
			So(sc.loaded["tiny.map"].Cells, ShouldResemble, []float64{0, 1})

			var st scene.Status
			So(json.Unmarshal(rec.Body.Bytes(), &st), ShouldBeNil)
			So(st.MapName, ShouldEqual, "tiny.map")
			So(st.Width, ShouldEqual, 2)
		})

		Convey("Bad uploads are rejected", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, uploadRequest("file", "bad.map", "not a header\n"))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)

			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, uploadRequest("wrong", "tiny.map", "0 0 1 1 1\n0\n"))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(sc.loaded, ShouldBeEmpty)
		})

		Convey("Status and snapshot reflect the scene", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "application/json")
			So(rec.Body.String(), ShouldContainSubstring, `"connection":"open"`)

			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "image/png")
			img, err := png.Decode(rec.Body)
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 4)
		})

		Convey("A stopped scene is unavailable", func() {
			sc.stopped = true
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)

			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, uploadRequest("file", "tiny.map", "0 0 1 1 1\n0\n"))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestWebsocket(t *testing.T) {
	Convey("A page is synchronized over its websocket", t, func() {
		sc := newFakeScene()
		sc.frames <- fastview.Frame{Reset: true, Updates: []fastview.EleUpdate{fastview.Text(scene.EleStatus, "hello")}}
		server, err := NewServer(":0", config.Default(), sc)
		So(err, ShouldBeNil)

		ts := httptest.NewServer(server.Handler())
		defer ts.Close()

		ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
		So(err, ShouldBeNil)
		defer ws.Close()

		_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame fastview.Frame
		So(ws.ReadJSON(&frame), ShouldBeNil)
		So(frame.Reset, ShouldBeTrue)
		So(frame.Updates[0].Ops[0].Value, ShouldEqual, "hello")

		So(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"plan"}`)), ShouldBeNil)
		select {
		case cmd := <-sc.commands:
			So(cmd, ShouldEqual, `{"type":"plan"}`)
		case <-time.After(5 * time.Second):
			t.Fatal("command not delivered")
		}
	})
}
