package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/scene"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFlags(t *testing.T) {
	Convey("When flags are parsed", t, func() {
		Convey("Defaults leave the config untouched", func() {
			opts, err := parseFlags(nil)
			So(err, ShouldBeNil)
			So(opts.configPath, ShouldEqual, "./nav-app.yaml")

			cfg := config.Default()
			So(opts.apply(cfg), ShouldBeNil)
			So(cfg, ShouldResemble, config.Default())
		})

		Convey("Set flags override the config", func() {
			opts, err := parseFlags([]string{"-host", "127.0.0.1", "-port", "9000", "-backend", "planner:8181"})
			So(err, ShouldBeNil)

			cfg := config.Default()
			So(opts.apply(cfg), ShouldBeNil)
			So(cfg.Server.Addr(), ShouldEqual, "127.0.0.1:9000")
			So(cfg.Backend.Host, ShouldEqual, "planner")
			So(cfg.Backend.Port, ShouldEqual, 8181)
		})

		Convey("A bad backend address is an error", func() {
			for _, backend := range []string{"planner", "planner:http", "planner:0"} {
				opts, err := parseFlags([]string{"-backend", backend})
				So(err, ShouldBeNil)
				So(opts.apply(config.Default()), ShouldNotBeNil)
			}
		})

		Convey("Unknown flags are rejected", func() {
			_, err := parseFlags([]string{"-nworkers", "4"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDumpMap(t *testing.T) {
	Convey("When a map is dumped", t, func() {
		path := filepath.Join(t.TempDir(), "wall.map")
		So(os.WriteFile(path, []byte("0 0 3 2 0.05\n0 0 0\n0 9 0\n"), 0o644), ShouldBeNil)

		var out bytes.Buffer
		So(dumpMap(&out, path), ShouldBeNil)
		So(out.String(), ShouldEqual, path+": 3x2 cells, 0.050 m/cell\n. # . \n. . . \n")

		So(dumpMap(&out, filepath.Join(t.TempDir(), "missing.map")), ShouldNotBeNil)
	})
}

func TestStartupMap(t *testing.T) {
	Convey("When a map is loaded at startup", t, func() {
		path := filepath.Join(t.TempDir(), "wall.map")
		So(os.WriteFile(path, []byte("0 0 2 2 1\n0 1\n0 0\n"), 0o644), ShouldBeNil)

		sc := scene.NewController(scene.Options{Config: config.Default()})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- sc.Run(ctx) }()

		So(loadStartupMap(ctx, sc, path), ShouldBeNil)
		st, err := sc.Status(ctx)
		So(err, ShouldBeNil)
		So(st.MapName, ShouldEqual, "wall.map")
		So(st.Width, ShouldEqual, 2)

		So(loadStartupMap(ctx, sc, path+".missing"), ShouldNotBeNil)

		cancel()
		So(<-done, ShouldBeNil)
	})
}

func TestSenderFunc(t *testing.T) {
	Convey("senderFunc forwards to its function", t, func() {
		var got interface{}
		send := senderFunc(func(msg interface{}) bool {
			got = msg
			return msg != nil
		})
		So(send.Send("hi"), ShouldBeTrue)
		So(got, ShouldEqual, "hi")
		So(send.Send(nil), ShouldBeFalse)
	})
}
