package engine

import (
	"fmt"
	"math"

	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
)

// InstructionType classifies one turn-by-turn step.
type InstructionType string

const (
	InstrStart       InstructionType = "start"
	InstrStraight    InstructionType = "straight"
	InstrSlightLeft  InstructionType = "slight-left"
	InstrSlightRight InstructionType = "slight-right"
	InstrLeft        InstructionType = "left"
	InstrRight       InstructionType = "right"
	InstrSharpLeft   InstructionType = "sharp-left"
	InstrSharpRight  InstructionType = "sharp-right"
	InstrFloorChange InstructionType = "floor-change"
	InstrDestination InstructionType = "destination"
)

// Bearing-change thresholds in degrees: below the first is straight, then
// slight, then regular, then sharp.
const (
	slightTurnDeg = 20.0
	turnDeg       = 45.0
	sharpTurnDeg  = 135.0
)

// Instruction is one step of the textual directions.
type Instruction struct {
	Type      InstructionType `json:"type"`
	Text      string          `json:"text"`
	DistanceM float64         `json:"distanceM"`
	Icon      string          `json:"icon"`
	Floor     string          `json:"floor,omitempty"`
}

// Instructions generates ordered turn-by-turn directions for a route.
// Consecutive straight legs are merged so the distance on each step is the
// stretch to walk before the next maneuver.
func Instructions(r *Route) []Instruction {
	if r == nil || len(r.Path) < 2 {
		return nil
	}

	out := []Instruction{{
		Type:  InstrStart,
		Text:  "Start",
		Icon:  "start",
		Floor: r.Floors[0],
	}}

	pending := 0.0
	prevBearing := geo.Bearing(r.Path[0], r.Path[1])

	for i := 0; i+1 < len(r.Path); i++ {
		legDist := geo.Distance(r.Path[i], r.Path[i+1])

		if r.Floors[i] != r.Floors[i+1] {
			flushStraight(&out, &pending)
			out = append(out, Instruction{
				Type:  InstrFloorChange,
				Text:  fmt.Sprintf("Take the %s to %s", floorChangeMode(r, i), r.Floors[i+1]),
				Icon:  "floor-change",
				Floor: r.Floors[i+1],
			})
			if i+2 < len(r.Path) {
				prevBearing = geo.Bearing(r.Path[i+1], r.Path[i+2])
			}
			continue
		}

		if i > 0 {
			bearing := geo.Bearing(r.Path[i], r.Path[i+1])
			turn := turnFor(angleDelta(prevBearing, bearing))
			prevBearing = bearing

			if turn != InstrStraight {
				flushStraight(&out, &pending)
				out = append(out, Instruction{
					Type:  turn,
					Text:  turnText(turn),
					Icon:  string(turn),
					Floor: r.Floors[i],
				})
			}
		}
		pending += legDist
	}

	flushStraight(&out, &pending)
	out = append(out, Instruction{
		Type:  InstrDestination,
		Text:  "You have arrived",
		Icon:  "destination",
		Floor: r.Floors[len(r.Floors)-1],
	})
	return out
}

func flushStraight(out *[]Instruction, pending *float64) {
	if *pending <= 0 {
		return
	}
	*out = append(*out, Instruction{
		Type:      InstrStraight,
		Text:      fmt.Sprintf("Continue for %.0f m", *pending),
		Icon:      "straight",
		DistanceM: *pending,
	})
	*pending = 0
}

// floorChangeMode names the connector used at path index i from the
// matching segment's traversed edge type.
func floorChangeMode(r *Route, i int) string {
	if i < len(r.Segments) {
		switch r.Segments[i].Type {
		case graph.EdgeElevator:
			return "elevator"
		case graph.EdgeStairs:
			return "stairs"
		case graph.EdgeEscalator:
			return "escalator"
		}
	}
	return "stairs or elevator"
}

// angleDelta returns the signed turn angle in (-180, 180]: positive is a
// right turn.
func angleDelta(from, to float64) float64 {
	d := math.Mod(to-from+540, 360) - 180
	if d <= -180 {
		d += 360
	}
	return d
}

func turnFor(delta float64) InstructionType {
	abs := math.Abs(delta)
	switch {
	case abs < slightTurnDeg:
		return InstrStraight
	case abs < turnDeg:
		if delta > 0 {
			return InstrSlightRight
		}
		return InstrSlightLeft
	case abs < sharpTurnDeg:
		if delta > 0 {
			return InstrRight
		}
		return InstrLeft
	default:
		if delta > 0 {
			return InstrSharpRight
		}
		return InstrSharpLeft
	}
}

func turnText(t InstructionType) string {
	switch t {
	case InstrSlightLeft:
		return "Bear left"
	case InstrSlightRight:
		return "Bear right"
	case InstrLeft:
		return "Turn left"
	case InstrRight:
		return "Turn right"
	case InstrSharpLeft:
		return "Make a sharp left"
	case InstrSharpRight:
		return "Make a sharp right"
	}
	return "Continue"
}
