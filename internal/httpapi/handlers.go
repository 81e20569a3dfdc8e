package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crowdnav/internal/nav/agent"
)

type targetRequest struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (h *routerHandlers) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	h.engine.SetTarget(req.X, req.Z)
	w.WriteHeader(http.StatusNoContent)
}

type obstacleRequest struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
}

func (h *routerHandlers) handleAddObstacle(w http.ResponseWriter, r *http.Request) {
	var req obstacleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	id := h.engine.AddObstacle(req.X, req.Z, req.Radius)
	writeJSON(w, map[string]int{"id": id})
}

func (h *routerHandlers) handleRemoveObstacle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.engine.RemoveObstacle(id)
	w.WriteHeader(http.StatusNoContent)
}

type spawnRequest struct {
	X                   float64 `json:"x"`
	Y                   float64 `json:"y"`
	Z                   float64 `json:"z"`
	SpeedMax            float64 `json:"speed_max"`
	FlowWeight          float64 `json:"flow_weight"`
	AvoidWeight         float64 `json:"avoid_weight"`
	CohesionWeight      float64 `json:"cohesion_weight"`
	WalkSpeedThreshold  float64 `json:"walk_speed_threshold"`
	KinematicControlled bool    `json:"kinematic_controlled"`
}

func (h *routerHandlers) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tmpl := agent.Template{
		SpeedMax:            req.SpeedMax,
		FlowWeight:          req.FlowWeight,
		AvoidWeight:         req.AvoidWeight,
		CohesionWeight:      req.CohesionWeight,
		WalkSpeedThreshold:  req.WalkSpeedThreshold,
		KinematicControlled: req.KinematicControlled,
	}

	id, err := h.engine.Spawn(req.X, req.Y, req.Z, tmpl)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]int{"id": id})
}

func (h *routerHandlers) handleDespawn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	h.engine.Despawn(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	agents, field := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"active_count": h.engine.ActiveCount(),
		"pool_size":    h.engine.PoolSize(),
		"agents":       agents,
		"grid":         field.Grid,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
