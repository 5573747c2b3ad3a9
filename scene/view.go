package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/rob102-staff/nav-app/render"
	"github.com/rob102-staff/nav-app/server/fastview"
)

// Page element ids.
const (
	EleRobot      = "robot"
	EleHeading    = "robot-heading"
	EleStatus     = "status-msg"
	EleConnection = "connection"
	EleMapName    = "map-name"
	EleGoal       = "goal-status"
	EleAlgo       = "algo"
	ElePlayback   = "playback"
)

var connectionStyles = map[string]struct{ text, colour string }{
	connWait:   {"Wait", "#ffd300"},
	connOpen:   {"Connected", "#00ff00"},
	connClosed: {"Not Connected", "#ff0000"},
}

func px(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// elements renders every page element from the current scene. Robot coordinates are converted
// to screen space (y down) for the SVG overlay.
func (c *Controller) elements() []fastview.EleUpdate {
	w := float64(c.widthPx)
	r := c.robotSize / 2
	headX := c.robot.X + r*math.Cos(c.robot.Theta)
	headY := c.robot.Y + r*math.Sin(c.robot.Theta)

	conn := connectionStyles[c.connection]

	goal := ""
	if c.goal != nil && !c.goalValid {
		goal = fmt.Sprintf("Goal (%v) is occupied", *c.goal)
	}

	delivered, total := c.player.Progress()
	playing := c.player.State().String()
	if total > 0 {
		playing = fmt.Sprintf("%s %d/%d", playing, delivered, total)
	}

	mapName := c.mapName
	if !c.occ.Loaded() {
		mapName = "No map loaded"
	}

	return []fastview.EleUpdate{
		{EleId: EleRobot, Ops: []fastview.Op{
			{Key: "cx", Value: px(c.robot.X)},
			{Key: "cy", Value: px(w - c.robot.Y)},
			{Key: "r", Value: px(r)},
		}},
		{EleId: EleHeading, Ops: []fastview.Op{
			{Key: "x1", Value: px(c.robot.X)},
			{Key: "y1", Value: px(w - c.robot.Y)},
			{Key: "x2", Value: px(headX)},
			{Key: "y2", Value: px(w - headY)},
		}},
		fastview.Text(EleStatus, c.statusMessage()),
		{EleId: EleConnection, Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: conn.text},
			{Key: "style", Value: "background-color: " + conn.colour},
		}},
		fastview.Text(EleMapName, mapName),
		fastview.Text(EleGoal, goal),
		{EleId: EleAlgo, Ops: []fastview.Op{{Key: "value", Value: c.algo.Key}}},
		fastview.Text(ElePlayback, playing),
	}
}

func (c *Controller) statusMessage() string {
	msg := []string{fmt.Sprintf("Robot Cell: (%v)", c.robotCell())}
	if c.clicked != nil {
		msg = append(msg, fmt.Sprintf("Clicked Cell: (%v)", *c.clicked))
	}
	if c.showField {
		msg = append(msg, fmt.Sprintf("Field: %.4f", c.hover))
	}
	return strings.Join(msg, "\u00a0\u00a0\u00a0")
}

func sameOps(a, b fastview.EleUpdate) bool {
	if a.EleId != b.EleId || len(a.Ops) != len(b.Ops) {
		return false
	}
	for i := range a.Ops {
		if a.Ops[i] != b.Ops[i] {
			return false
		}
	}
	return true
}

// pendingFrame collects the layers' paint ops and the elements that changed since they were
// last shown.
func (c *Controller) pendingFrame() (frame fastview.Frame) {
	for _, l := range c.layers {
		frame.Paints = append(frame.Paints, l.ops.Flush()...)
	}
	for _, update := range c.elements() {
		if !sameOps(c.shown[update.EleId], update) {
			frame.Updates = append(frame.Updates, update)
			c.shown[update.EleId] = update
		}
	}
	return
}

// flush publishes what changed during the last event.
func (c *Controller) flush() {
	c.hub.Publish(c.pendingFrame())
}

// fullFrame describes the whole scene from scratch, for a page that just joined.
func (c *Controller) fullFrame() fastview.Frame {
	frame := fastview.Frame{Reset: true}
	for _, l := range c.layers {
		replay := render.NewOpSurface(l.name, float64(c.widthPx))
		l.canvas.Replay(replay)
		frame.Paints = append(frame.Paints, replay.Flush()...)
	}
	frame.Updates = c.elements()
	return frame
}

func (c *Controller) join() joinReply {
	c.flush()
	id, frames := c.hub.Subscribe(c.fullFrame())
	return joinReply{id: id, frames: frames}
}

func (c *Controller) status() Status {
	st := Status{
		MapName:    c.mapName,
		MapLoaded:  c.occ.Loaded(),
		Width:      c.geo.Grid.Width,
		Height:     c.geo.Grid.Height,
		Robot:      c.robot,
		RobotCell:  c.robotCell(),
		RobotSize:  c.robotSize,
		GoalValid:  c.goalValid,
		PathLength: len(c.path),
		Visited:    len(c.visited),
		ShowField:  c.showField,
		FieldHover: c.hover,
		Connection: c.connection,
		Algo:       c.algo.Label,
		Playback:   c.player.State().String(),
		Viewers:    c.hub.Count(),
	}
	if c.clicked != nil {
		clicked := *c.clicked
		st.Clicked = &clicked
	}
	if c.goal != nil {
		goal := *c.goal
		st.Goal = &goal
	}
	return st
}
