// Package protocol defines the JSON messages exchanged with the planning backend.
// Every message is an envelope {"type": ..., "data": {...}}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rob102-staff/nav-app/models"
)

const (
	TypeMapFile     = "map_file"
	TypePlan        = "plan"
	TypeRobotPath   = "robot_path"
	TypeVisitedCell = "visited_cell"
	TypeField       = "field"
)

// ErrNoType is returned for an envelope without a type.
var ErrNoType = errors.New("message has no type")

// Envelope is the outer shape of every backend message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MapFileData tells the backend which map the user loaded.
type MapFileData struct {
	FileName string `json:"file_name"`
}

// PlanData requests a path from start to goal. Cells are formatted with FormatCell.
type PlanData struct {
	MapName string `json:"map_name"`
	Goal    string `json:"goal"`
	Start   string `json:"start"`
	Algo    string `json:"algo"`
}

// RobotPathData carries a planned path.
type RobotPathData struct {
	Path models.Path `json:"path"`
}

// VisitedCellData carries one cell the planner expanded.
type VisitedCellData struct {
	Cell models.CellIndex `json:"cell"`
}

// FieldData carries a raw potential field, one value per cell in linear index order.
type FieldData struct {
	Field []float64 `json:"field"`
}

// FormatCell renders a cell the way the backend parses it: "[row col]".
func FormatCell(c models.CellIndex) string {
	return fmt.Sprintf("[%d %d]", c.Row, c.Col)
}

func newEnvelope(msgType string, data interface{}) (env Envelope, err error) {
	env.Type = msgType
	env.Data, err = json.Marshal(data)
	return
}

// MapFile builds a map_file message.
func MapFile(name string) (Envelope, error) {
	return newEnvelope(TypeMapFile, MapFileData{FileName: name})
}

// Plan builds a plan message.
func Plan(mapName string, goal, start models.CellIndex, algo string) (Envelope, error) {
	return newEnvelope(TypePlan, PlanData{
		MapName: mapName,
		Goal:    FormatCell(goal),
		Start:   FormatCell(start),
		Algo:    algo,
	})
}

// Decode parses the envelope of an inbound message.
func Decode(raw []byte) (env Envelope, err error) {
	if err = json.Unmarshal(raw, &env); err != nil {
		return
	}
	if env.Type == "" {
		err = ErrNoType
	}
	return
}

func decodeData(env Envelope, want string, v interface{}) error {
	if env.Type != want {
		return fmt.Errorf("message type %q is not %q", env.Type, want)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", want, err)
	}
	return nil
}

// RobotPath extracts the data of a robot_path message.
func (env Envelope) RobotPath() (data RobotPathData, err error) {
	err = decodeData(env, TypeRobotPath, &data)
	return
}

// VisitedCell extracts the data of a visited_cell message.
func (env Envelope) VisitedCell() (data VisitedCellData, err error) {
	err = decodeData(env, TypeVisitedCell, &data)
	return
}

// Field extracts the data of a field message.
func (env Envelope) Field() (data FieldData, err error) {
	err = decodeData(env, TypeField, &data)
	return
}
