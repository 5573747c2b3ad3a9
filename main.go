/*
nav-app is the planner front-end for a grid robot. It loads occupancy maps, lets the user pick
a goal cell in the browser, asks a planning backend for a path over a websocket, and plays the
robot along the returned path while drawing the cells the planner visited. The browser is a
thin page; the scene lives here and is pushed to every open page as differential frames.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/models"
	"github.com/rob102-staff/nav-app/scene"
	"github.com/rob102-staff/nav-app/server"
	"github.com/rob102-staff/nav-app/session"
	"github.com/rob102-staff/nav-app/telemetry"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath string
	host       string
	port       int
	backend    string
	mapPath    string
	dump       string
	debug      bool
}

func parseFlags(args []string) (opts options, err error) {
	fs := flag.NewFlagSet("nav-app", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "./nav-app.yaml", "config file; defaults are used if it does not exist")
	fs.StringVar(&opts.host, "host", "", "The host ip to serve the page on")
	fs.IntVar(&opts.port, "port", 0, "The port to serve the page on")
	fs.StringVar(&opts.backend, "backend", "", "planning backend as host:port")
	fs.StringVar(&opts.mapPath, "map", "", "map file to load at startup")
	fs.StringVar(&opts.dump, "dump", "", "print a map file to the console and exit")
	fs.BoolVar(&opts.debug, "debug", false, "debug mode")
	err = fs.Parse(args)
	return
}

// apply overrides cfg with the flags that were set.
func (opts options) apply(cfg *config.Config) (err error) {
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.backend != "" {
		var host, port string
		if host, port, err = net.SplitHostPort(opts.backend); err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		if cfg.Backend.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("backend port: %w", err)
		}
		cfg.Backend.Host = host
	}
	return cfg.Validate()
}

func dumpMap(w io.Writer, path string) (err error) {
	var m *models.OccupancyMap
	if m, err = models.LoadMapFile(path); err != nil {
		return
	}
	fmt.Fprintf(w, "%s: %dx%d cells, %.3f m/cell\n", path, m.Width, m.Height, m.MetersPerCell)
	models.ShowMap(w, m)
	return
}

func runApp(ctx context.Context, opts options) (err error) {
	if opts.dump != "" {
		return dumpMap(os.Stdout, opts.dump)
	}

	var cfg *config.Config
	if cfg, err = config.Load(opts.configPath); err != nil {
		return
	}
	if err = opts.apply(cfg); err != nil {
		return
	}

	var pub *telemetry.Publisher
	if pub, err = telemetry.Connect(telemetry.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}); err != nil {
		return
	}
	defer pub.Close()

	// The scene and the session refer to each other; the session only needs the scene's
	// handlers, which are safe to call before the scene runs.
	var sess *session.Manager
	sceneOpts := scene.Options{Config: cfg}
	if pub != nil {
		sceneOpts.Telemetry = pub
	}
	sceneOpts.Sender = senderFunc(func(msg interface{}) bool { return sess.Send(msg) })
	sc := scene.NewController(sceneOpts)

	sess = session.NewManager(session.Options{
		URI:             session.URI(cfg.Backend.Host, cfg.Backend.Port, cfg.Backend.Endpoint),
		ReconnectPeriod: cfg.Backend.ReconnectPeriod,
		OnStatus:        sc.SetConnection,
		OnMessage:       sc.HandleBackend,
	})

	var srv *server.Server
	if srv, err = server.NewServer(cfg.Server.Addr(), cfg, sc); err != nil {
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sc.Run(groupCtx)
	})
	group.Go(func() error {
		return sess.Run(groupCtx)
	})
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})

	if opts.mapPath != "" {
		if err = loadStartupMap(groupCtx, sc, opts.mapPath); err != nil {
			log.Println(err)
		}
	}

	err = group.Wait()
	return
}

// senderFunc adapts a function to scene.Sender.
type senderFunc func(msg interface{}) bool

func (f senderFunc) Send(msg interface{}) bool {
	return f(msg)
}

func loadStartupMap(ctx context.Context, sc *scene.Controller, path string) error {
	m, err := models.LoadMapFile(path)
	if err != nil {
		return err
	}
	return sc.LoadMap(ctx, filepath.Base(path), m)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if opts.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = runApp(ctx, opts); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
