// Package config loads nav-app settings from a YAML file of the form
//
//	kind: NavAppConfig
//	def:
//	  backend: {...}
//	  ...
//
// Anything the file leaves out keeps its default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only config kind nav-app accepts.
const Kind = "NavAppConfig"

var (
	ErrKind    = errors.New("unexpected config kind")
	ErrInvalid = errors.New("invalid config")
)

// OuterConfig is the kind/def envelope every config file is wrapped in.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Viper lowercases every map key it reads, so the yaml tags below are all lower case.

// Config is the full application configuration.
type Config struct {
	Backend    Backend     `yaml:"backend"`
	Server     Server      `yaml:"server"`
	Display    Display     `yaml:"display"`
	Playback   Playback    `yaml:"playback"`
	MQTT       MQTT        `yaml:"mqtt"`
	Algorithms []Algorithm `yaml:"algorithms"`
	// DefaultAlgorithm is the key of the algorithm selected at startup.
	DefaultAlgorithm string `yaml:"defaultalgorithm"`
}

// Backend is the planning server the session connects to.
type Backend struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Endpoint        string        `yaml:"endpoint"`
	ReconnectPeriod time.Duration `yaml:"reconnectperiod"`
}

// Server is the address the browser view is served on.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr is the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Display holds canvas geometry and the colour palette. Colours are "#rrggbb".
type Display struct {
	MapDisplayWidth   int     `yaml:"mapdisplaywidth"`
	RobotDiameter     float64 `yaml:"robotdiameter"`
	RobotDefaultSize  float64 `yaml:"robotdefaultsize"`
	MapColourLow      string  `yaml:"mapcolourlow"`
	MapColourHigh     string  `yaml:"mapcolourhigh"`
	FieldColourLow    string  `yaml:"fieldcolourlow"`
	FieldColourHigh   string  `yaml:"fieldcolourhigh"`
	FieldAlpha        string  `yaml:"fieldalpha"`
	PathColour        string  `yaml:"pathcolour"`
	VisitedCellColour string  `yaml:"visitedcellcolour"`
	ClickedCellColour string  `yaml:"clickedcellcolour"`
	GoalCellColour    string  `yaml:"goalcellcolour"`
	BadGoalColour     string  `yaml:"badgoalcolour"`
	RobotColour       string  `yaml:"robotcolour"`
	SmallCellScale    float64 `yaml:"smallcellscale"`
}

// Playback sets the robot's step interval: BaseInterval minus Speedup, at least MinInterval.
type Playback struct {
	BaseInterval time.Duration `yaml:"baseinterval"`
	Speedup      time.Duration `yaml:"speedup"`
	MinInterval  time.Duration `yaml:"mininterval"`
}

// MQTT selects the telemetry broker; an empty Broker disables telemetry.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientid"`
	TopicPrefix string `yaml:"topicprefix"`
}

// Algorithm is a selectable planner. Label is what the backend is sent.
type Algorithm struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: Backend{
			Host:            "localhost",
			Port:            8080,
			Endpoint:        "mb",
			ReconnectPeriod: 5 * time.Second,
		},
		Server: Server{
			Host: "",
			Port: 8000,
		},
		Display: Display{
			MapDisplayWidth:   800,
			RobotDiameter:     0.274,
			RobotDefaultSize:  100,
			MapColourLow:      "#ffffff",
			MapColourHigh:     "#00274C",
			FieldColourLow:    "#ffffff",
			FieldColourHigh:   "#444444",
			FieldAlpha:        "99",
			PathColour:        "#00B2A9",
			VisitedCellColour: "#989C97",
			ClickedCellColour: "#FFCB05",
			GoalCellColour:    "#00ff00",
			BadGoalColour:     "#ff0000",
			RobotColour:       "#1f3b73",
			SmallCellScale:    0.8,
		},
		Playback: Playback{
			BaseInterval: 100 * time.Millisecond,
			MinInterval:  5 * time.Millisecond,
		},
		MQTT: MQTT{
			ClientID:    "nav-app",
			TopicPrefix: "navapp",
		},
		Algorithms: []Algorithm{
			{Key: "DFS", Name: "Depth First Search", Label: "dfs"},
			{Key: "BFS", Name: "Breadth First Search", Label: "bfs"},
			{Key: "IDS", Name: "Iterative Deepening Search", Label: "ids"},
			{Key: "ASTAR", Name: "A-Star", Label: "astar"},
			{Key: "PFIELD", Name: "Potential Field", Label: "pfield"},
		},
		DefaultAlgorithm: "PFIELD",
	}
}

// FromYaml reads the config file at path over the defaults.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if !strings.EqualFold(outerConfig.Kind, Kind) {
		return nil, fmt.Errorf("%w: %q, want %q", ErrKind, outerConfig.Kind, Kind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	cfg := Default()
	if err = yaml.Unmarshal(def, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path, or returns the defaults when path is empty or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return FromYaml(path)
}

var hexColour = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
var hexAlpha = regexp.MustCompile(`^[0-9a-fA-F]{2}$`)

// Validate checks the values nav-app cannot run without.
func (cfg *Config) Validate() error {
	var problems []string
	if cfg.Backend.Port <= 0 || cfg.Backend.Port > 65535 {
		problems = append(problems, fmt.Sprintf("backend port %d", cfg.Backend.Port))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d", cfg.Server.Port))
	}
	if cfg.Backend.ReconnectPeriod <= 0 {
		problems = append(problems, "reconnect period must be positive")
	}
	if cfg.Display.MapDisplayWidth <= 0 {
		problems = append(problems, "map display width must be positive")
	}
	if s := cfg.Display.SmallCellScale; s <= 0 || s > 1 {
		problems = append(problems, fmt.Sprintf("small cell scale %v not in (0,1]", s))
	}
	if !hexAlpha.MatchString(cfg.Display.FieldAlpha) {
		problems = append(problems, fmt.Sprintf("field alpha %q", cfg.Display.FieldAlpha))
	}
	for name, colour := range cfg.Display.colours() {
		if !hexColour.MatchString(colour) {
			problems = append(problems, fmt.Sprintf("%s %q", name, colour))
		}
	}
	if cfg.Algorithm(cfg.DefaultAlgorithm) == nil {
		problems = append(problems, fmt.Sprintf("default algorithm %q", cfg.DefaultAlgorithm))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (d Display) colours() map[string]string {
	return map[string]string{
		"mapColourLow":      d.MapColourLow,
		"mapColourHigh":     d.MapColourHigh,
		"fieldColourLow":    d.FieldColourLow,
		"fieldColourHigh":   d.FieldColourHigh,
		"pathColour":        d.PathColour,
		"visitedCellColour": d.VisitedCellColour,
		"clickedCellColour": d.ClickedCellColour,
		"goalCellColour":    d.GoalCellColour,
		"badGoalColour":     d.BadGoalColour,
		"robotColour":       d.RobotColour,
	}
}

// Algorithm finds an algorithm by key or label, case-insensitively.
func (cfg *Config) Algorithm(keyOrLabel string) *Algorithm {
	for i := range cfg.Algorithms {
		alg := &cfg.Algorithms[i]
		if strings.EqualFold(alg.Key, keyOrLabel) || strings.EqualFold(alg.Label, keyOrLabel) {
			return alg
		}
	}
	return nil
}
