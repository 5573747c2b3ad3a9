package scene

import (
	"math"
	"strconv"
	"time"

	"github.com/rob102-staff/nav-app/models"
	"github.com/rob102-staff/nav-app/protocol"
	"github.com/rob102-staff/nav-app/render"
	"github.com/rob102-staff/nav-app/session"
	"github.com/rob102-staff/nav-app/telemetry"
)

func (c *Controller) handleCommand(cmd Command) {
	switch cmd.Type {
	case CmdMouseDown:
		c.mouseDown(cmd.X, cmd.Y)
	case CmdMouseMove:
		c.mouseMove(cmd.X, cmd.Y)
	case CmdMouseUp:
		c.dragging = false
	case CmdClearGoal:
		c.clearGoal()
	case CmdPlan:
		c.plan()
	case CmdToggleField:
		c.setShowField(!c.showField)
	case CmdSelectAlgo:
		c.selectAlgo(cmd.Value)
	case CmdSetSpeed:
		c.setSpeed(cmd.Value)
	default:
		Logf("unrecognized page command %q", cmd.Type)
	}
}

func (c *Controller) handleBackend(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		Logf("backend message: %v", err)
		return
	}

	switch env.Type {
	case protocol.TypeRobotPath:
		data, err := env.RobotPath()
		if err != nil {
			Logf("backend message: %v", err)
			return
		}
		c.setPath(data.Path)
	case protocol.TypeVisitedCell:
		data, err := env.VisitedCell()
		if err != nil {
			Logf("backend message: %v", err)
			return
		}
		c.addVisited(data.Cell)
	case protocol.TypeField:
		data, err := env.Field()
		if err != nil {
			Logf("backend message: %v", err)
			return
		}
		c.setField(data.Field)
	default:
		Logf("unrecognized backend message type %q", env.Type)
	}
}

// loadMap resets the whole scene for a new map. A map without cells leaves the scene unloaded.
func (c *Controller) loadMap(name string, m *models.OccupancyMap) {
	if !m.Loaded() {
		m = nil
	}
	c.mapName = name
	c.occ = m
	g := m.Grid()

	for _, l := range c.layers {
		if !l.canvas.Configure(g.Width, g.Height) && l != c.mapLayer {
			l.canvas.Clear()
		}
	}
	if m.Loaded() {
		d := c.cfg.Display
		c.mapLayer.canvas.RenderGradient(m.Cells, d.MapColourLow, d.MapColourHigh, render.OpaqueAlpha)
	} else {
		c.mapLayer.canvas.Clear()
	}

	c.field = models.Field{}
	c.hover = 0
	c.visited = nil
	c.path = nil
	c.clicked = nil
	c.goal = nil
	c.goalValid = true
	c.dragging = false
	c.player.Stop()

	c.geo = models.Display{WidthPx: float64(c.widthPx), Grid: g}
	if m.Loaded() {
		c.geo.MetersPerCell = m.MetersPerCell
	}
	c.robotSize = c.geo.RobotSize(c.cfg.Display.RobotDiameter, c.cfg.Display.RobotDefaultSize)
	c.setRobot(c.geo.Center())
	c.updateMarked()

	if name != "" {
		if env, err := protocol.MapFile(name); err == nil {
			c.send(env)
		}
	}
}

func (c *Controller) mouseDown(x, y float64) {
	r := c.robotSize / 2
	if math.Abs(x-c.robot.X) < r && math.Abs(y-c.robot.Y) < r {
		c.dragging = true
		return
	}
	c.mapClick(x, y)
}

func (c *Controller) mapClick(x, y float64) {
	if !c.occ.Loaded() {
		return
	}
	cell := c.geo.PixelsToCell(x, y)
	if !c.geo.Grid.Contains(cell) {
		return
	}
	c.clicked = &cell
	c.updateMarked()
}

func (c *Controller) mouseMove(x, y float64) {
	if c.dragging {
		c.player.Stop()
		c.setRobot(models.Pose{X: x, Y: y, Theta: c.robot.Theta})
	}
	if c.showField && !c.field.Empty() {
		c.hover = c.field.HoverValue(c.geo.Grid, c.geo.PixelsToCell(x, y))
	}
}

func (c *Controller) clearGoal() {
	c.path = nil
	c.clicked = nil
	c.goal = nil
	c.goalValid = true
	c.updateMarked()
}

// plan validates the clicked cell as a goal and asks the backend for a path to it from the
// robot's cell. An occupied goal is shown in the bad-goal colour and nothing is sent.
func (c *Controller) plan() {
	if !c.occ.Loaded() || c.clicked == nil {
		return
	}

	goal := *c.clicked
	c.goal = &goal
	c.goalValid = !c.occ.IsOccupied(goal)
	c.path = nil
	c.updateMarked()
	if !c.goalValid {
		return
	}

	c.visited = nil
	c.visitedLayer.canvas.Clear()
	c.player.Stop()

	start := c.robotCell()
	env, err := protocol.Plan(c.mapName, goal, start, c.algo.Label)
	if err != nil {
		Logf("plan: %v", err)
		return
	}
	c.send(env)

	if c.telemetry != nil {
		err = c.telemetry.PublishPlan(telemetry.PlanMessage{
			MapName: c.mapName,
			Start:   protocol.FormatCell(start),
			Goal:    protocol.FormatCell(goal),
			Algo:    c.algo.Label,
		})
		if err != nil && err != telemetry.ErrNotConnected {
			Logf("telemetry: %v", err)
		}
	}
}

func (c *Controller) setShowField(show bool) {
	c.showField = show
	c.renderField()
}

func (c *Controller) renderField() {
	if !c.showField || c.field.Empty() {
		c.fieldLayer.canvas.Clear()
		return
	}
	d := c.cfg.Display
	c.fieldLayer.canvas.RenderGradient(c.field.Normalized, d.FieldColourLow, d.FieldColourHigh, d.FieldAlpha)
}

func (c *Controller) selectAlgo(value string) {
	alg := c.cfg.Algorithm(value)
	if alg == nil {
		Logf("unknown algorithm %q", value)
		return
	}
	c.algo = *alg
}

// setSpeed takes the speedup as milliseconds or a duration string such as "40ms".
func (c *Controller) setSpeed(value string) {
	var speedup time.Duration
	if ms, err := strconv.ParseFloat(value, 64); err == nil {
		speedup = time.Duration(ms * float64(time.Millisecond))
	} else if d, err := time.ParseDuration(value); err == nil {
		speedup = d
	} else {
		Logf("bad speed %q", value)
		return
	}
	c.speedup = speedup
	c.player.SetInterval(c.interval())
}

// setPath shows a planned path and plays it back through the cell centres.
func (c *Controller) setPath(path models.Path) {
	c.path = append(models.Path(nil), path...)
	c.updateMarked()

	waypoints := make([]models.Pose, 0, len(path))
	prev := c.robot
	for _, cell := range path {
		x, y := c.geo.CellToPixels(cell)
		pose := models.Pose{X: x, Y: y, Theta: prev.Theta}
		if x != prev.X || y != prev.Y {
			pose.Theta = math.Atan2(y-prev.Y, x-prev.X)
		}
		waypoints = append(waypoints, pose)
		prev = pose
	}
	c.player.Start(waypoints)
}

func (c *Controller) addVisited(cell models.CellIndex) {
	c.visited = append(c.visited, cell)
	d := c.cfg.Display
	c.visitedLayer.canvas.RenderIndexed([]models.CellIndex{cell}, []string{d.VisitedCellColour}, d.SmallCellScale)
}

func (c *Controller) setField(raw []float64) {
	c.field = models.NewField(raw)
	c.hover = 0
	c.renderField()
}

func (c *Controller) setConnection(status session.Status) {
	if status == session.Open {
		c.connection = connOpen
	} else {
		c.connection = connClosed
	}
}

// moveRobot is the playback callback; it runs on the loop via Tick.
func (c *Controller) moveRobot(pose models.Pose) {
	c.setRobot(pose)
	if c.telemetry != nil {
		if err := c.telemetry.PublishPose(pose, c.robotCell()); err != nil && err != telemetry.ErrNotConnected {
			Logf("telemetry: %v", err)
		}
	}
}

func (c *Controller) setRobot(pose models.Pose) {
	c.robot = pose
}

func (c *Controller) robotCell() models.CellIndex {
	return c.geo.PixelsToCell(c.robot.X, c.robot.Y)
}

func (c *Controller) updateMarked() {
	d := c.cfg.Display
	cells, colours := models.MarkedCells(c.clicked, c.path, c.goal, c.goalValid, models.MarkPalette{
		Clicked: d.ClickedCellColour,
		Path:    d.PathColour,
		Goal:    d.GoalCellColour,
		BadGoal: d.BadGoalColour,
	})
	c.markedLayer.canvas.Sync(cells, colours, d.SmallCellScale)
}

func (c *Controller) send(msg interface{}) {
	if c.sender == nil || !c.sender.Send(msg) {
		Logf("backend not connected, dropped %T", msg)
	}
}
