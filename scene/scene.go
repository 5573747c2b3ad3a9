// Package scene is the controller that owns every piece of planner-front-end state: the loaded
// map, the layer canvases, the robot, the clicked and goal cells, and the backend connection
// status. One goroutine (Run) makes every mutation; other goroutines talk to it over channels.
package scene

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rob102-staff/nav-app/clock"
	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/models"
	"github.com/rob102-staff/nav-app/playback"
	"github.com/rob102-staff/nav-app/render"
	"github.com/rob102-staff/nav-app/server/fastview"
	"github.com/rob102-staff/nav-app/session"
	"github.com/rob102-staff/nav-app/telemetry"
)

// Logf is the package diagnostic logger. Tests may replace it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("scene controller stopped")

// Layer names, bottom to top.
const (
	LayerMap     = "map"
	LayerField   = "field"
	LayerVisited = "visited"
	LayerMarked  = "marked"
)

// Browser command types.
const (
	CmdMouseDown   = "mouse_down"
	CmdMouseMove   = "mouse_move"
	CmdMouseUp     = "mouse_up"
	CmdClearGoal   = "clear_goal"
	CmdPlan        = "plan"
	CmdToggleField = "toggle_field"
	CmdSelectAlgo  = "select_algo"
	CmdSetSpeed    = "set_speed"
)

// Command is a message from the page. X and Y are canvas pixels with y up.
type Command struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value string  `json:"value,omitempty"`
}

// Sender delivers messages to the planning backend; session.Manager implements it.
type Sender interface {
	Send(msg interface{}) bool
}

// Telemetry mirrors poses and plan requests; *telemetry.Publisher implements it.
type Telemetry interface {
	PublishPose(pose models.Pose, cell models.CellIndex) error
	PublishPlan(msg telemetry.PlanMessage) error
}

// Options wire a Controller. Config is required; the rest default to no-ops and the real clock.
type Options struct {
	Config    *config.Config
	Sender    Sender
	Telemetry Telemetry
	Hub       *fastview.Hub
	Clock     clock.Clock
}

// Status is a snapshot of the scene for the status endpoint.
type Status struct {
	MapName    string            `json:"map_name"`
	MapLoaded  bool              `json:"map_loaded"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Robot      models.Pose       `json:"robot"`
	RobotCell  models.CellIndex  `json:"robot_cell"`
	RobotSize  float64           `json:"robot_size"`
	Clicked    *models.CellIndex `json:"clicked,omitempty"`
	Goal       *models.CellIndex `json:"goal,omitempty"`
	GoalValid  bool              `json:"goal_valid"`
	PathLength int               `json:"path_length"`
	Visited    int               `json:"visited"`
	ShowField  bool              `json:"show_field"`
	FieldHover float64           `json:"field_hover"`
	Connection string            `json:"connection"`
	Algo       string            `json:"algo"`
	Playback   string            `json:"playback"`
	Viewers    int               `json:"viewers"`
}

type layer struct {
	name   string
	canvas *render.GridCanvas
	ops    *render.OpSurface
	raster *render.RasterSurface
}

func newLayer(name string, widthPx int) *layer {
	l := &layer{
		name:   name,
		ops:    render.NewOpSurface(name, float64(widthPx)),
		raster: render.NewRasterSurface(widthPx),
	}
	l.canvas = render.NewGridCanvas(name, render.Tee(l.ops, l.raster))
	return l
}

type loadRequest struct {
	name  string
	m     *models.OccupancyMap
	reply chan struct{}
}

type joinReply struct {
	id     uuid.UUID
	frames <-chan fastview.Frame
}

// Controller is the scene event loop.
type Controller struct {
	cfg       *config.Config
	widthPx   int
	sender    Sender
	telemetry Telemetry
	hub       *fastview.Hub
	player    *playback.Scheduler

	mapLayer, fieldLayer, visitedLayer, markedLayer *layer
	layers                                          []*layer

	// Scene state, touched only by the loop.
	mapName    string
	occ        *models.OccupancyMap
	geo        models.Display
	field      models.Field
	showField  bool
	hover      float64
	visited    []models.CellIndex
	path       models.Path
	clicked    *models.CellIndex
	goal       *models.CellIndex
	goalValid  bool
	robot      models.Pose
	robotSize  float64
	dragging   bool
	algo       config.Algorithm
	speedup    time.Duration
	connection string

	// shown is the last update sent for each page element.
	shown map[string]fastview.EleUpdate

	commands chan Command
	inbound  chan []byte
	statuses chan session.Status
	loads    chan loadRequest
	joins    chan chan joinReply
	queries  chan chan Status
	done     chan struct{}
}

// connection values shown before the first session notification and after.
const (
	connWait   = "wait"
	connOpen   = "open"
	connClosed = "closed"
)

const eventBuffer = 64

// NewController builds the scene with no map loaded and the robot at the canvas centre.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = fastview.NewHub(0)
	}

	c := &Controller{
		cfg:        cfg,
		widthPx:    cfg.Display.MapDisplayWidth,
		sender:     opts.Sender,
		telemetry:  opts.Telemetry,
		hub:        hub,
		goalValid:  true,
		connection: connWait,
		shown:      map[string]fastview.EleUpdate{},
		commands:   make(chan Command, eventBuffer),
		inbound:    make(chan []byte, eventBuffer),
		statuses:   make(chan session.Status, eventBuffer),
		loads:      make(chan loadRequest),
		joins:      make(chan chan joinReply),
		queries:    make(chan chan Status),
		done:       make(chan struct{}),
	}

	c.mapLayer = newLayer(LayerMap, c.widthPx)
	c.fieldLayer = newLayer(LayerField, c.widthPx)
	c.visitedLayer = newLayer(LayerVisited, c.widthPx)
	c.markedLayer = newLayer(LayerMarked, c.widthPx)
	c.layers = []*layer{c.mapLayer, c.fieldLayer, c.visitedLayer, c.markedLayer}
	for _, l := range c.layers {
		l.canvas.Configure(0, 0)
	}

	if alg := cfg.Algorithm(cfg.DefaultAlgorithm); alg != nil {
		c.algo = *alg
	} else if len(cfg.Algorithms) > 0 {
		c.algo = cfg.Algorithms[0]
	}

	c.speedup = cfg.Playback.Speedup
	c.player = playback.NewScheduler(opts.Clock, c.interval(), c.moveRobot)

	c.geo = models.Display{WidthPx: float64(c.widthPx)}
	c.robot = c.geo.Center()
	c.robotSize = c.geo.RobotSize(cfg.Display.RobotDiameter, cfg.Display.RobotDefaultSize)
	c.flush()
	return c
}

func (c *Controller) interval() time.Duration {
	p := c.cfg.Playback
	return playback.Interval(p.BaseInterval, c.speedup, p.MinInterval)
}

// Hub is the frame hub browsers subscribe to.
func (c *Controller) Hub() *fastview.Hub {
	return c.hub
}

// Run is the event loop. It returns when ctx is done, stopping playback.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.player.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case raw := <-c.inbound:
			c.handleBackend(raw)
		case st := <-c.statuses:
			c.setConnection(st)
		case req := <-c.loads:
			c.loadMap(req.name, req.m)
			close(req.reply)
		case <-c.player.Ticks():
			c.player.Tick()
		case reply := <-c.joins:
			c.drainEvents()
			reply <- c.join()
			continue
		case reply := <-c.queries:
			c.drainEvents()
			reply <- c.status()
			continue
		}
		c.flush()
	}
}

// drainEvents handles every event already queued, so a query sees the events posted before it.
func (c *Controller) drainEvents() {
	defer c.flush()
	for {
		select {
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case raw := <-c.inbound:
			c.handleBackend(raw)
		case st := <-c.statuses:
			c.setConnection(st)
		default:
			return
		}
	}
}

func post[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case <-done:
		return ErrStopped
	default:
	}
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStopped
	}
}

// Dispatch queues a page command.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) error {
	return post(ctx, c.done, c.commands, cmd)
}

// HandleCommand decodes and queues a raw page message. Malformed messages are logged and dropped.
func (c *Controller) HandleCommand(ctx context.Context, data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		Logf("page message: %v", err)
		return nil
	}
	return c.Dispatch(ctx, cmd)
}

// HandleBackend queues a raw backend message. Intended as the session's message handler.
func (c *Controller) HandleBackend(data []byte) {
	_ = post(context.Background(), c.done, c.inbound, data)
}

// SetConnection queues a session status. Intended as the session's status observer.
func (c *Controller) SetConnection(status session.Status) {
	_ = post(context.Background(), c.done, c.statuses, status)
}

// LoadMap replaces the scene's map and waits until the scene has been reset for it.
func (c *Controller) LoadMap(ctx context.Context, name string, m *models.OccupancyMap) error {
	req := loadRequest{name: name, m: m, reply: make(chan struct{})}
	if err := post(ctx, c.done, c.loads, req); err != nil {
		return err
	}
	select {
	case <-req.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join subscribes to frames, starting with a full frame of the current scene.
func (c *Controller) Join(ctx context.Context) (uuid.UUID, <-chan fastview.Frame, error) {
	reply := make(chan joinReply, 1)
	if err := post(ctx, c.done, c.joins, reply); err != nil {
		return uuid.Nil, nil, err
	}
	select {
	case r := <-reply:
		return r.id, r.frames, nil
	case <-ctx.Done():
		return uuid.Nil, nil, ctx.Err()
	}
}

// Leave ends a subscription.
func (c *Controller) Leave(id uuid.UUID) {
	c.hub.Unsubscribe(id)
}

// Status returns a snapshot of the scene.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := post(ctx, c.done, c.queries, reply); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Snapshot composites the layers and the robot into an image.
func (c *Controller) Snapshot(ctx context.Context) (*image.NRGBA, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}

	rasters := make([]*render.RasterSurface, 0, len(c.layers))
	for _, l := range c.layers {
		rasters = append(rasters, l.raster)
	}
	robot := render.Marker{X: st.Robot.X, Y: st.Robot.Y, Radius: st.RobotSize / 2, Color: c.cfg.Display.RobotColour}

	caption := st.MapName
	if caption == "" {
		caption = "no map"
	}
	return render.Composite(c.widthPx, "#ffffff", rasters, []render.Marker{robot}, caption), nil
}
