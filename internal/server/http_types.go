package server

import (
	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/engine"
)

// routeRequest is the POST /v1/route body. Coordinates are [lng, lat].
type routeRequest struct {
	Start      [2]float64 `json:"start"`
	End        [2]float64 `json:"end"`
	StartFloor string     `json:"startFloor"`
	EndFloor   string     `json:"endFloor"`

	AccessibleOnly    bool     `json:"accessibleOnly,omitempty"`
	AvoidStairs       bool     `json:"avoidStairs,omitempty"`
	AllowLockedDoors  bool     `json:"allowLockedDoors,omitempty"`
	RoomTraversalMode string   `json:"roomTraversalMode,omitempty"`
	AllowedRoomIDs    []string `json:"allowedRoomIds,omitempty"`
	Bidirectional     bool     `json:"bidirectional,omitempty"`

	// Smooth adds the cosmetically smoothed polyline to the response.
	Smooth bool `json:"smooth,omitempty"`

	// Instructions adds turn-by-turn directions to the response.
	Instructions bool `json:"instructions,omitempty"`
}

func (r *routeRequest) options() engine.RouteOptions {
	return engine.RouteOptions{
		AccessibleOnly:    r.AccessibleOnly,
		AvoidStairs:       r.AvoidStairs,
		AllowLockedDoors:  r.AllowLockedDoors,
		RoomTraversalMode: r.RoomTraversalMode,
		AllowedRoomIDs:    r.AllowedRoomIDs,
		Bidirectional:     r.Bidirectional,
	}
}

// routeResponse is the success body of POST /v1/route.
type routeResponse struct {
	Route        *engine.Route        `json:"route"`
	SmoothedPath []orb.Point          `json:"smoothedPath,omitempty"`
	Instructions []engine.Instruction `json:"instructions,omitempty"`
}

// errorResponse carries a routing error code and message.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusResponse is the GET /v1/status body.
type statusResponse struct {
	Initialized bool `json:"initialized"`
	Nodes       int  `json:"nodes"`
	Edges       int  `json:"edges"`
	Rooms       int  `json:"rooms"`
}
