// server serves the planner page, its websocket, and a small JSON api for map uploads and
// scene status. All view state lives in the scene; the server only routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/models"
	"github.com/rob102-staff/nav-app/render"
	"github.com/rob102-staff/nav-app/scene"
	"github.com/rob102-staff/nav-app/server/fastview"
)

const (
	// Largest accepted map upload.
	maxMapSize = 32 << 20
	// Time allowed for in-flight requests when the server shuts down.
	shutdownGrace = 5 * time.Second
)

// Scene is what the server serves; *scene.Controller implements it.
type Scene interface {
	fastview.Joiner
	HandleCommand(ctx context.Context, data []byte) error
	LoadMap(ctx context.Context, name string, m *models.OccupancyMap) error
	Status(ctx context.Context) (scene.Status, error)
	Snapshot(ctx context.Context) (*image.NRGBA, error)
}

// Server serves any number of pages, each synchronized with the one scene over its own websocket.
type Server struct {
	addr   string
	scene  Scene
	index  *template.Template
	page   pageData
	router *mux.Router
}

// NewServer parses the page and registers the routes.
func NewServer(addr string, cfg *config.Config, sc Scene) (*Server, error) {
	index, err := parseIndex()
	if err != nil {
		return nil, fmt.Errorf("index template: %w", err)
	}

	server := &Server{
		addr:  addr,
		scene: sc,
		index: index,
		page: pageData{
			Width:       cfg.Display.MapDisplayWidth,
			Layers:      []string{scene.LayerMap, scene.LayerField, scene.LayerVisited, scene.LayerMarked},
			Algorithms:  cfg.Algorithms,
			DefaultAlgo: cfg.DefaultAlgorithm,
			RobotColour: cfg.Display.RobotColour,
		},
		router: mux.NewRouter(),
	}
	if alg := cfg.Algorithm(cfg.DefaultAlgorithm); alg != nil {
		server.page.DefaultAlgo = alg.Key
	}

	server.router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	server.router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	server.router.HandleFunc("/snapshot.png", server.serveSnapshot).Methods(http.MethodGet)
	api := server.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/map", server.serveMapUpload).Methods(http.MethodPost)
	api.HandleFunc("/status", server.serveStatus).Methods(http.MethodGet)
	return server, nil
}

// Handler is the server's router, for tests and embedding.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is done, then shuts down gracefully. Request contexts derive from
// ctx, so open websockets are torn down with it.
func (server *Server) Serve(ctx context.Context) (err error) {
	srv := &http.Server{
		Addr:        server.addr,
		Handler:     server.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	log.Printf("serving on %s", server.addr)

	select {
	case err = <-errs:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		<-errs
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		err = fmt.Errorf("serve: %w", err)
		return
	}
	return nil
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := server.index.Execute(w, server.page); err != nil {
		log.Println("index:", err)
	}
}

// serveWebsocket synchronizes one page with the scene until the page goes away.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(w, r, server.scene, server.scene.HandleCommand)
	if err != nil {
		// The upgrader has already replied.
		log.Println("upgrade:", err)
		return
	}

	if err = cli.Sync(); err != nil {
		log.Println("sync:", err)
	}
}

// serveMapUpload loads the map in the multipart "file" field into the scene.
func (server *Server) serveMapUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMapSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("map upload: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	m, err := models.DecodeMap(header.Filename, file)
	if err != nil {
		http.Error(w, fmt.Sprintf("%s: %v", header.Filename, err), http.StatusBadRequest)
		return
	}
	if err = server.scene.LoadMap(r.Context(), header.Filename, m); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	server.serveStatus(w, r)
}

func (server *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	st, err := server.scene.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(st); err != nil {
		log.Println("status:", err)
	}
}

func (server *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	img, err := server.scene.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err = render.WritePNG(w, img); err != nil {
		log.Println("snapshot:", err)
	}
}
