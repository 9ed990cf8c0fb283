package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Initialized: s.Engine.Initialized()}
	if resp.Initialized {
		resp.Nodes = s.Engine.Graph().NodeCount()
		resp.Edges = s.Engine.Graph().EdgeCount()
		resp.Rooms = len(s.Engine.Rooms().Rooms())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad-request", Message: err.Error()})
		return
	}
	if req.StartFloor == "" || req.EndFloor == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad-request", Message: "startFloor and endFloor are required"})
		return
	}

	start := orb.Point(req.Start)
	end := orb.Point(req.End)

	route, err := s.Engine.FindRoute(start, end, req.StartFloor, req.EndFloor, req.options())
	if err != nil {
		var rerr *engine.RouteError
		if errors.As(err, &rerr) {
			writeJSON(w, statusFor(rerr.Code), errorResponse{Code: string(rerr.Code), Message: rerr.Message})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal", Message: err.Error()})
		return
	}

	resp := routeResponse{Route: route}
	if req.Smooth {
		resp.SmoothedPath, _ = s.Engine.SmoothRoute(route)
	}
	if req.Instructions {
		resp.Instructions = engine.Instructions(route)
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(code engine.ErrorCode) int {
	switch code {
	case engine.CodeNotInitialized:
		return http.StatusServiceUnavailable
	case engine.CodeNoDoor, engine.CodeNoPath, engine.CodeBlocked:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
