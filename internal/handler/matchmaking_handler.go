// Package handler implements the HTTP facade over the matchmaking
// sequencer, registry, and mission catalog. Grounded on
// internal/handler/game_handler.go's handler-struct-wrapping-service shape
// and response.go's writeJSON/writeError/decodeJSON helpers.
package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/ecrtools/matchmaking-core/internal/formation"
	"github.com/ecrtools/matchmaking-core/internal/logger"
	"github.com/ecrtools/matchmaking-core/internal/missioncatalog"
	"github.com/ecrtools/matchmaking-core/internal/region"
	"github.com/ecrtools/matchmaking-core/internal/registry"
)

var gameVersionPattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("game_version", func(fl validator.FieldLevel) bool {
		return gameVersionPattern.MatchString(fl.Field().String())
	})
	return v
}

// MatchmakingHandler serves the matchmaking HTTP facade.
type MatchmakingHandler struct {
	sequencer *formation.Sequencer
	registry  *registry.Store
	mapper    *region.Mapper
	catalog   *missioncatalog.Cache
}

// NewMatchmakingHandler creates a MatchmakingHandler.
func NewMatchmakingHandler(sequencer *formation.Sequencer, reg *registry.Store, mapper *region.Mapper, catalog *missioncatalog.Cache) *MatchmakingHandler {
	return &MatchmakingHandler{sequencer: sequencer, registry: reg, mapper: mapper, catalog: catalog}
}

type reenterMatchmakingRequest struct {
	PlayerID    string `json:"player_id" validate:"required"`
	Region      string `json:"region" validate:"required"`
	PoolName    string `json:"pool_name" validate:"required,oneof=pvp_casual pvp_duels pvp_instant pve pve_instant"`
	GameVersion string `json:"game_version" validate:"required,game_version"`
	GameContour string `json:"game_contour" validate:"required,oneof=prod dev"`

	DesiredMatchGroup string   `json:"desired_match_group,omitempty" validate:"omitempty,oneof=PoolAlpha PoolBeta PoolGamma Vein Inferno Abyss"`
	Faction           string   `json:"faction,omitempty"`
	PartyMembers      []string `json:"party_members,omitempty" validate:"omitempty,max=4"`
}

// ReenterMatchmakingQueue handles POST /reenter_matchmaking_queue.
func (h *MatchmakingHandler) ReenterMatchmakingQueue(w http.ResponseWriter, r *http.Request) {
	var req reenterMatchmakingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.sequencer.ReenterQueue(r.Context(), formation.ReenterRequest{
		PlayerID:          req.PlayerID,
		PoolName:          req.PoolName,
		GameVersion:       req.GameVersion,
		GameContour:       req.GameContour,
		Region:            req.Region,
		DesiredMatchGroup: req.DesiredMatchGroup,
		Faction:           req.Faction,
		PartyMembers:      req.PartyMembers,
	})
	if err != nil {
		if errors.Is(err, formation.ErrNotQueued) {
			writeError(w, http.StatusBadRequest, "player not in queue; provide first-entry fields")
			return
		}
		if errors.Is(err, formation.ErrUnknownPool) {
			writeError(w, http.StatusBadRequest, "unknown pool_name")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch result.Status {
	case formation.StatusMatch:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   result.Status,
			"match_id": result.MatchID,
			"mission":  result.Mission,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         result.Status,
			"faction_counts": result.FactionCounts,
		})
	}
}

type leaveMatchmakingRequest struct {
	PlayerID string `json:"player_id" validate:"required"`
}

// LeaveMatchmakingQueue handles POST /leave_matchmaking_queue.
func (h *MatchmakingHandler) LeaveMatchmakingQueue(w http.ResponseWriter, r *http.Request) {
	var req leaveMatchmakingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.sequencer.LeaveQueue(r.Context(), req.PlayerID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Player removed from queue"})
}

type registerGameServerRequest struct {
	Region              string `json:"region" validate:"required"`
	ResourceUnits       int    `json:"resource_units" validate:"required,min=1"`
	FreeResourceUnits   int    `json:"free_resource_units" validate:"min=0"`
	FreeInstancesAmount int    `json:"free_instances_amount" validate:"min=0"`
}

// RegisterOrUpdateGameServer handles POST /register_or_update_game_server.
// The server address is taken from the caller's network identity, not the
// request body. resource_units (total capacity) is accepted for parity with
// the wire contract but isn't stored — the registry's sorted set is scored
// by free_resource_units alone.
func (h *MatchmakingHandler) RegisterOrUpdateGameServer(w http.ResponseWriter, r *http.Request) {
	var req registerGameServerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr := callerAddr(r)
	if err := h.registry.RegisterOrUpdate(r.Context(), addr, req.Region, req.FreeResourceUnits, req.FreeInstancesAmount); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Server registered"})
}

// UnregisterGameServer handles POST /unregister_game_server.
func (h *MatchmakingHandler) UnregisterGameServer(w http.ResponseWriter, r *http.Request) {
	addr := callerAddr(r)
	if err := h.registry.Unregister(r.Context(), addr); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Server unregistered"})
}

type registerGameServerStatsRequest struct {
	Region  string         `json:"region" validate:"required"`
	MatchID string         `json:"match_id" validate:"required"`
	Stats   map[string]any `json:"stats"`
}

// RegisterGameServerStats handles POST /register_game_server_stats. Stats
// are logged only; they don't feed match formation.
func (h *MatchmakingHandler) RegisterGameServerStats(w http.ResponseWriter, r *http.Request) {
	var req registerGameServerStatsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.ForRequest(r.Context()).Debug().
		Str("server", callerAddr(r)).
		Str("match_id", req.MatchID).
		Interface("stats", req.Stats).
		Msg("received game server stats")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Stats registered"})
}

// UpdateMissionData handles POST /update_mission_data, triggering an
// asynchronous catalog refresh.
func (h *MatchmakingHandler) UpdateMissionData(w http.ResponseWriter, r *http.Request) {
	log := logger.ForRequest(r.Context())
	go func() {
		if err := h.catalog.Refresh(context.Background()); err != nil {
			log.Error().Err(err).Msg("mission catalog refresh failed")
		}
	}()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Acknowledged"})
}

// Health reports liveness for GET /healthz.
func (h *MatchmakingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DebugRegionDistances reports the base EU-island distance table and how a
// query-string region code resolves to a group, for operators diagnosing
// unexpected launch ordering. Only mounted when DEBUG_REGION_DISTANCES is
// enabled.
func (h *MatchmakingHandler) DebugRegionDistances(w http.ResponseWriter, r *http.Request) {
	distanceMap, err := region.DistanceMap("EU")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{"base_group": "EU", "distances": distanceMap}
	if code := r.URL.Query().Get("code"); code != "" {
		resp["code"] = code
		resp["group"] = h.mapper.Group(code)
	}
	writeJSON(w, http.StatusOK, resp)
}

func callerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
